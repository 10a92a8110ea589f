package ledger

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPackages = errors.New("insufficient listing packages")
	ErrFreeAdUsed           = errors.New("free ad already used")
	ErrUserNotFound         = errors.New("user not found")
	ErrInternal             = errors.New("ledger internal error")
)
