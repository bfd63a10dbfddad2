package app

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrUserDisabled       = errors.New("account disabled")
	ErrUserMissing        = errors.New("account no longer exists")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("invalid request")
	ErrForbidden          = errors.New("operation not allowed")
)
