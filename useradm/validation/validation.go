// Package validation holds the username rules enforced before any
// mutating account operation.
package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxUsernameLength is the longest username the engine accepts.
const MaxUsernameLength = 32

var (
	ErrInvalidFormat = errors.New("invalid username format")
	ErrTooLong       = errors.New("username too long")
)

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidateUsername checks a username against the engine's rules: it
// must start with a lowercase letter, contain only lowercase letters,
// digits or hyphens, and be at most 32 characters. Group and shell
// values are never validated here; the platform decides those.
func ValidateUsername(username string) error {
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: %q is %d characters, limit is %d",
			ErrTooLong, username, len(username), MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, username)
	}
	return nil
}
