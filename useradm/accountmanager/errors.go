package accountmanager

import "errors"

var (
	ErrInvalidUsername  = errors.New("invalid username")
	ErrAlreadyExists    = errors.New("account already exists")
	ErrNotFound         = errors.New("account not found")
	ErrGroupOpFailed    = errors.New("group operation failed")
	ErrShellOpFailed    = errors.New("shell operation failed")
	ErrLockOpFailed     = errors.New("lock operation failed")
	ErrPasswordOpFailed = errors.New("password operation failed")

	// ErrPrimitiveFailed wraps any underlying platform call failure
	// not covered by a more specific class.
	ErrPrimitiveFailed = errors.New("platform primitive failed")
)
