package random

import (
	"crypto/rand"
	"math/big"
)

// Random produces unpredictable identifiers
type Random interface {
	// String returns length characters drawn uniformly from alphabet
	String(length int, alphabet string) string
}

// Crypto draws from crypto/rand
type Crypto struct{}

// New returns a crypto/rand backed source
func New() Crypto {
	return Crypto{}
}

// String returns length characters drawn uniformly from alphabet
func (Crypto) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}
