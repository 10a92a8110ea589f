package admin

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("admin session not found or expired")
	ErrInternal           = errors.New("internal admin error")
)
