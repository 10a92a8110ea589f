package purchase

import "errors"

var (
	ErrInvalidPackageType   = errors.New("unknown package type")
	ErrInvalidPromotionType = errors.New("unknown promotion type")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrListingNotPromotable = errors.New("listing cannot be promoted")
	ErrInternal             = errors.New("purchase internal error")
)
