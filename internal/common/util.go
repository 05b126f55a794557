package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the result is 2*size characters.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// RandomCode returns a random string of length n drawn from [A-Z0-9].
func RandomCode(n int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// 252 is the largest multiple of 36 below 256; higher bytes are redrawn.
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if c >= 252 || len(out) == n {
				continue
			}
			out = append(out, alphabet[int(c)%len(alphabet)])
		}
	}
	return string(out), nil
}

// Unsign renders a UUID in the 32-character form without dashes.
func Unsign(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// RandomUnsignedUUID returns a fresh random UUID without dashes.
func RandomUnsignedUUID() string {
	return Unsign(uuid.New())
}

// ParseUUID accepts both the dashed (36) and the unsigned (32) UUID forms.
func ParseUUID(s string) (uuid.UUID, error) {
	switch len(s) {
	case 32, 36:
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: invalid uuid %q", ErrInvalidArgument, s)
	}
}
