package service

import "errors"

var (
	ErrDuplicate         = errors.New("resource already exists")
	ErrNotFound          = errors.New("resource not found")
	ErrBadCredentials    = errors.New("invalid credentials")
	ErrSuspended         = errors.New("account suspended")
	ErrRevoked           = errors.New("token revoked")
	ErrNoSession         = errors.New("no matching active session")
	ErrInvalidResetToken = errors.New("reset token invalid or expired")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrBadInput          = errors.New("invalid input")
	ErrDependency        = errors.New("dependency failure")
)
