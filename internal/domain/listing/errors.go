package listing

import "errors"

var (
	ErrNotFound          = errors.New("listing not found")
	ErrForbidden         = errors.New("listing belongs to another user")
	ErrInvalidTransition = errors.New("listing state does not allow this operation")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrReconciling       = errors.New("listing has a payment pending reconciliation")
	ErrInternal          = errors.New("internal listing error")
)
