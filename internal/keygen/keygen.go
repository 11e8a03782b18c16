// Package keygen produces the opaque routing tokens that address endpoints.
package keygen

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// KeyLength is two independent 16-character base36 draws, ~165 bits of
	// entropy. The key carries no owner or timing information.
	KeyLength = 32
)

// rejection threshold: the largest multiple of len(alphabet) below 256, so
// mapping bytes onto the alphabet stays uniform.
const maxUnbiased = byte(256 - 256%len(alphabet))

// NewKey returns a fresh routing key. An error from the entropy source is
// fatal to the caller's create operation; there is no weaker fallback.
func NewKey() (string, error) {
	out := make([]byte, 0, KeyLength)
	buf := make([]byte, KeyLength)
	for len(out) < KeyLength {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("reading entropy: %w", err)
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == KeyLength {
				break
			}
		}
	}
	return string(out), nil
}
