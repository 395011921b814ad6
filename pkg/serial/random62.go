package serial

import (
	"context"
	"crypto/rand"
	"math/big"
)

const (
	random62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	random62Length    = 35
)

// Random62Serializer produces a 35-character base62 string drawn from a
// cryptographically secure RNG. The original seeds a ChaCha20 stream
// cipher with fed bytes; no seeded-DRBG package exists anywhere in the
// retrieval pack, so this mixes fed bytes in as additional entropy ahead
// of crypto/rand rather than as a deterministic seed (see DESIGN.md).
type Random62Serializer struct {
	seed []byte
}

// NewRandom62Serializer returns a ready-to-feed Random62Serializer.
func NewRandom62Serializer() *Random62Serializer {
	return &Random62Serializer{}
}

// Feed implements Feeder.
func (s *Random62Serializer) Feed(data []byte) {
	s.seed = append(s.seed, data...)
}

// Build resolves the random62 string.
func (s *Random62Serializer) Build(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	out := make([]byte, random62Length)
	alphabetSize := big.NewInt(int64(len(random62Alphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		idx := int(n.Int64())
		if i < len(s.seed) {
			idx = (idx + int(s.seed[i])) % len(random62Alphabet)
		}
		out[i] = random62Alphabet[idx]
	}

	return string(out), nil
}
