package serial

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/Boyux/fastsend/pkg/config"
)

// Uninitialized is returned by an IncrementEngine to signal that it has
// no prior value and AutoIncrementSerializer should seed its own state.
const Uninitialized int64 = -1

// IncrementEngine advances a persisted counter given the last value this
// process observed, returning the next value. Implementations typically
// wrap a database sequence or row (internal/dedupe provides a
// Postgres-backed one).
type IncrementEngine interface {
	Incr(ctx context.Context, last int64) (next int64, err error)
}

var suffixCounter atomic.Uint32

func init() {
	suffixCounter.Store(uint32(config.RandomValue()))
}

// AutoIncrementSerializer produces a monotonically increasing, padded
// decimal string with an optional prefix and a rotating suffix. The
// suffix exists purely to raise the cost of guessing the next serial
// from the previous one; it does not participate in ordering.
type AutoIncrementSerializer struct {
	engine  IncrementEngine
	prefix  string
	padding int
	last    atomic.Int64
}

// NewAutoIncrementSerializer constructs a serializer backed by engine.
func NewAutoIncrementSerializer(engine IncrementEngine, prefix string, padding int) *AutoIncrementSerializer {
	s := &AutoIncrementSerializer{engine: engine, prefix: prefix, padding: padding}
	s.last.Store(Uninitialized)
	return s
}

// Feed implements Feeder but is a no-op: AutoIncrementSerializer's output
// depends only on IncrementEngine state, never on fed bytes.
func (s *AutoIncrementSerializer) Feed([]byte) {}

// Build advances the engine and renders the new value.
func (s *AutoIncrementSerializer) Build(ctx context.Context) (string, error) {
	old := s.last.Load()
	next, err := s.engine.Incr(ctx, old)
	if err != nil {
		return "", fmt.Errorf("serial: auto-increment engine: %w", err)
	}
	if next != Uninitialized {
		if next <= old {
			return "", fmt.Errorf("serial: auto-increment engine returned non-advancing value %d (last %d)", next, old)
		}
		s.last.Store(next)
	}

	suffix := nextSuffix()

	ident := next
	rendered := fmt.Sprintf("%0*d", s.padding, ident)
	return fmt.Sprintf("%s%s%02d", s.prefix, rendered, suffix), nil
}

func nextSuffix() uint8 {
	for {
		old := suffixCounter.Load()
		updated := uint32(bits.RotateLeft8(uint8(old), 1)) + 1
		if suffixCounter.CompareAndSwap(old, updated) {
			return uint8(updated)
		}
	}
}
