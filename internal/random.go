// Package internal holds the crypto/rand helpers shared by the recovery
// engine: one-time code generation and the digests used for store keys and
// code comparison.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// NewCode draws a one-time code of the given length from alphabet using
// crypto/rand. Each position is sampled independently and uniformly.
func NewCode(length int, alphabet string) (string, error) {
	if length < 6 || length > 32 {
		return "", errors.New("invalid code length")
	}
	chars := []rune(alphabet)
	if len(chars) < 10 {
		return "", errors.New("code alphabet too small")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(chars)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteRune(chars[n.Int64()])
	}

	return b.String(), nil
}

// HashCode digests a one-time code for storage. Only the digest is ever
// persisted; the plaintext code exists in memory and in the notification.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// KeyDigest derives the deterministic store-key component for an identifier
// (an email address or an origin key). Hex keeps Redis keys printable.
func KeyDigest(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}
