// Package dispenser implements the global two-tier block dispenser: Frame
// is the bounded, lock-free-by-channel queue of Blocks with a CAS-guarded
// single-flight refill; Cache is the per-caller pooled holder that drains
// one Block at a time without lock contention on the hot path.
//
// Grounded on original_source/src/block/mod.rs (BlockFrame, BlockFuture,
// the refill routine) and original_source/src/lib.rs (with_block), with
// the thread-local cache redesigned onto sync.Pool — see SPEC_FULL.md
// "REDESIGN FLAGS" for why.
package dispenser

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/Boyux/fastsend/internal/block"
	"github.com/Boyux/fastsend/internal/cursor"
)

const (
	// ElementCap is the number of individual items a single refill
	// generation produces, matching the original's ELEMENT_CAP
	// (u16::MAX + 1): this coupling to the 16-bit space is deliberate,
	// see spec.md's Open Question on QUEUE_SIZE/u16 coupling.
	ElementCap = 1 << 16

	// QueueSize is the number of Blocks a single refill generation
	// produces and the capacity of Frame's queue.
	QueueSize = ElementCap / block.Size
)

// Frame is the process-global block dispenser for element type T.
type Frame[T any] struct {
	cursorCell       atomic.Uint32
	queue            chan block.Block[T]
	refillInProgress atomic.Bool
	constructor      block.Constructor[T]
	refillCount      atomic.Uint64

	// shuffle, when non-nil, is used instead of math/rand.Perm to permute
	// batch indices within one refill. Overridable for deterministic
	// tests; nil means "use math/rand.Perm" (the default, real behavior).
	shuffle func(n int) []int
}

// New constructs a Frame. When pauseOnStart is true (the build-time
// "pause_on_start" flag from spec.md §6), the initial cursor is advanced
// once so a process restarting within the same wall-clock second as its
// predecessor cannot reuse the predecessor's cursor. The default (false)
// skips this: the refill routine always calls Next on the current cursor
// anyway, so the first refill still advances past whatever Current()
// returns at construction time.
func New[T any](constructor block.Constructor[T], pauseOnStart bool) *Frame[T] {
	f := &Frame[T]{
		queue:       make(chan block.Block[T], QueueSize),
		constructor: constructor,
	}

	c := cursor.Current()
	if pauseOnStart {
		c = c.Next()
	}
	f.cursorCell.Store(c.Uint32())

	return f
}

// NextBlock resolves with one Block, draining the queue if it already has
// one (fast path) or triggering a single-flight refill and waiting for it
// to produce at least one Block (slow path). The channel receive below is
// the only suspension point; it is ctx-cancellable, which is this package's
// answer to spec.md's "no timeouts; callers layer their own" — a
// context.Context deadline or cancellation *is* that layering.
func (f *Frame[T]) NextBlock(ctx context.Context) (block.Block[T], error) {
	select {
	case b := <-f.queue:
		return b, nil
	default:
	}

	go f.refill()

	select {
	case b := <-f.queue:
		return b, nil
	case <-ctx.Done():
		var zero block.Block[T]
		return zero, ctx.Err()
	}
}

// refill is the single-flight routine: CAS-guarded, advances the cursor
// strictly forward, and enqueues up to QueueSize freshly constructed
// Blocks in a shuffled batch-index order. Losing the CAS is a no-op —
// there is nothing to wake, because a blocked NextBlock caller is released
// the instant any enqueue (from whichever goroutine wins the refill)
// succeeds; Go's channel send/receive already performs the hand-off that
// spec.md's manual waker protocol exists to simulate in Rust.
func (f *Frame[T]) refill() {
	if !f.refillInProgress.CompareAndSwap(false, true) {
		return
	}
	defer f.refillInProgress.Store(false)

	var next cursor.Cursor
	for {
		prev := cursor.FromUint32(f.cursorCell.Load())
		next = prev.Next()
		if f.cursorCell.CompareAndSwap(prev.Uint32(), next.Uint32()) {
			break
		}
	}

	perm := f.permutation()
	for _, n := range perm {
		blk := f.constructor.Construct(uint16(n), next)

		select {
		case f.queue <- blk:
		default:
			// Queue is already full: bookkeeping only, not expected under
			// normal drain (a refill only runs after the queue emptied).
			f.refillCount.Add(1)
			return
		}
	}

	f.refillCount.Add(1)
}

func (f *Frame[T]) permutation() []int {
	if f.shuffle != nil {
		return f.shuffle(QueueSize)
	}
	return rand.Perm(QueueSize)
}

// QueueLen reports the current number of ready Blocks, for metrics.
func (f *Frame[T]) QueueLen() int {
	return len(f.queue)
}

// CursorValue reports the most recently committed Cursor, for metrics.
func (f *Frame[T]) CursorValue() uint32 {
	return f.cursorCell.Load()
}

// RefillCount reports how many refill generations have run to completion
// (or stopped early on a full queue), for metrics.
func (f *Frame[T]) RefillCount() uint64 {
	return f.refillCount.Load()
}
