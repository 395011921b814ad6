package serial

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// uuidVersion selects which UUID algorithm UUIDSerializer uses.
type uuidVersion int

const (
	// UUIDv3 hashes fed bytes with MD5 against the DNS namespace.
	UUIDv3 uuidVersion = 3
	// UUIDv4 draws 16 bytes from a cryptographically secure RNG and
	// ignores any fed data.
	UUIDv4 uuidVersion = 4
	// UUIDv5 hashes fed bytes with SHA-1 against the DNS namespace.
	UUIDv5 uuidVersion = 5
)

// UUIDSerializer produces a uuid.UUID from fed bytes (V3/V5) or from pure
// entropy (V4). google/uuid replaces the original's hand-rolled
// version/variant bit manipulation with the canonical Go implementation.
type UUIDSerializer struct {
	version uuidVersion
	data    []byte
}

// NewUUIDSerializer constructs a UUIDSerializer for the given version.
func NewUUIDSerializer(version uuidVersion) *UUIDSerializer {
	return &UUIDSerializer{version: version}
}

// Feed implements Feeder. Fed bytes are ignored for UUIDv4, since that
// version is pure entropy by definition.
func (s *UUIDSerializer) Feed(data []byte) {
	if s.version == UUIDv4 {
		return
	}
	s.data = append(s.data, data...)
}

// Build resolves the UUID. ctx is accepted for Builder symmetry with the
// other serializers but is never actually blocking here.
func (s *UUIDSerializer) Build(ctx context.Context) (uuid.UUID, error) {
	select {
	case <-ctx.Done():
		return uuid.UUID{}, ctx.Err()
	default:
	}

	switch s.version {
	case UUIDv3:
		return uuid.NewMD5(uuid.NameSpaceDNS, s.data), nil
	case UUIDv4:
		return uuid.NewRandom()
	case UUIDv5:
		return uuid.NewSHA1(uuid.NameSpaceDNS, s.data), nil
	default:
		return uuid.UUID{}, fmt.Errorf("serial: unsupported uuid version %d", s.version)
	}
}
