package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"simple", "jdoe", nil},
		{"single letter", "a", nil},
		{"digits and hyphens", "web-01", nil},
		{"max length", "a" + strings.Repeat("b", 31), nil},
		{"empty", "", ErrInvalidFormat},
		{"uppercase", "JDoe", ErrInvalidFormat},
		{"leading digit", "1jdoe", ErrInvalidFormat},
		{"leading hyphen", "-jdoe", ErrInvalidFormat},
		{"underscore", "j_doe", ErrInvalidFormat},
		{"space", "j doe", ErrInvalidFormat},
		{"dot", "j.doe", ErrInvalidFormat},
		{"too long", "a" + strings.Repeat("b", 32), ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
