package dispenser

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Boyux/fastsend/internal/block"
)

func TestCacheDispenseDrainsOneBlockAtATime(t *testing.T) {
	f := New[uint64](seqConstructor(), false)
	c := NewCache[uint64]()

	before := f.RefillCount()
	first, err := c.Dispense(context.Background(), f)
	require.NoError(t, err)
	waitUntil(t, func() bool { return f.RefillCount() > before })

	// The next block.Size-1 dispenses should all come from the cached
	// slot without triggering another refill.
	refillsAfterFirst := f.RefillCount()
	for i := 0; i < block.Size-1; i++ {
		_, err := c.Dispense(context.Background(), f)
		require.NoError(t, err)
	}
	require.Equal(t, refillsAfterFirst, f.RefillCount())

	// The slot is now exhausted, so this dispense must pull a new Block.
	_, err = c.Dispense(context.Background(), f)
	require.NoError(t, err)

	require.NotZero(t, first)
}

func TestCacheConcurrentDispenseNoDuplicates(t *testing.T) {
	f := New[uint64](seqConstructor(), false)
	c := NewCache[uint64]()

	const workers = 16
	const perWorker = 700

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*perWorker)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				item, err := c.Dispense(context.Background(), f)
				require.NoError(t, err)

				mu.Lock()
				_, dup := seen[item]
				seen[item] = struct{}{}
				mu.Unlock()
				require.False(t, dup, "duplicate item %d", item)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
