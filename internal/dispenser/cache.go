package dispenser

import (
	"context"
	"sync"

	"github.com/Boyux/fastsend/internal/block"
)

// cacheSlot holds at most one partially-drained Block. Pool.Get either
// allocates a fresh zero-value slot or hands back one a prior Dispense
// call has already Put: because a slot is removed from the pool for the
// full duration of Dispense, including the await on Frame.NextBlock, no
// other goroutine can observe or mutate it while it is "checked out". The
// classic hazard this package's Rust ancestor disciplined by convention
// (never hold a borrow of the cache across an await point) cannot arise
// here at all, because Pool's Get/Put pair already is the exclusive
// checkout.
type cacheSlot[T any] struct {
	block block.Block[T]
	ready bool
}

// Cache is a pooled, per-caller holder of one partially-drained Block. It
// has no goroutine affinity: any goroutine may call Dispense, and the
// underlying sync.Pool shards storage per-P the same way the original's
// thread-local cache sharded storage per OS thread.
type Cache[T any] struct {
	pool sync.Pool
}

// NewCache constructs an empty Cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{
		pool: sync.Pool{
			New: func() any { return new(cacheSlot[T]) },
		},
	}
}

// Dispense returns the next item, refilling this Cache's slot from frame
// when empty or exhausted. The checked-out slot is not visible to any
// other caller for the duration of this call, including while it is
// blocked awaiting frame.NextBlock.
func (c *Cache[T]) Dispense(ctx context.Context, frame *Frame[T]) (T, error) {
	slot := c.pool.Get().(*cacheSlot[T])
	defer c.pool.Put(slot)

	if !slot.ready || slot.block.Remaining() == 0 {
		blk, err := frame.NextBlock(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		slot.block = blk
		slot.ready = true
	}

	item, ok := slot.block.TakeNext()
	if !ok {
		// Reaching here means a just-installed Block reported Remaining()
		// == 0 on construction, which Frame never does: Block.New always
		// returns a full Block. Treat it as an invariant violation rather
		// than silently returning a zero value.
		panic("dispenser: freshly installed block is already exhausted")
	}

	return item, nil
}
