package payment

import "errors"

var (
	ErrInvoiceCreationFailed = errors.New("invoice creation failed")
	ErrAlreadyProcessed      = errors.New("payment already processed")
	ErrNotFound              = errors.New("payment not found")
	ErrInternal              = errors.New("payment internal error")
)
