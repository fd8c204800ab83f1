package credentials

import (
	"crypto/rand"
	"fmt"
)

// alphabet deliberately excludes '=', '+' and '/' so generated secrets
// can be pasted into transports that treat those as encoding chars.
// 64 entries keeps the byte-to-char mapping unbiased.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Generator produces temporary secrets from a cryptographically strong
// random source.
type Generator struct{}

func (Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid secret length %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random source: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
