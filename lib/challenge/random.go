package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
)

// Entropy sizes for issued challenges.
const (
	NonceBytes = 16
	KeyBytes   = 24
)

// RandomToken reads n bytes from r and returns them as unpadded URL-safe
// base64.
func RandomToken(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropy, err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RandomIntn returns a uniform integer in [0, n) drawn from r.
func RandomIntn(r io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: RandomIntn bound must be positive, got %d", ErrMalformed, n)
	}

	v, err := rand.Int(r, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEntropy, err)
	}

	return int(v.Int64()), nil
}

// Shuffle permutes s in place with a Fisher-Yates shuffle driven by r.
func Shuffle[T any](r io.Reader, s []T) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := RandomIntn(r, i+1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}

	return nil
}
