package dispenser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Boyux/fastsend/internal/block"
	"github.com/Boyux/fastsend/internal/cursor"
)

// seqConstructor builds Blocks whose items globally encode (cursor, n, i),
// so uniqueness across an entire test run can be checked with a plain map.
func seqConstructor() block.ConstructorFunc[uint64] {
	return func(n uint16, cur cursor.Cursor) block.Block[uint64] {
		var items [block.Size]uint64
		base := uint64(cur)<<32 | uint64(n)<<8
		for i := range items {
			items[i] = base | uint64(i)
		}
		return block.New(items)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestNextBlockFillsQueueFromEmpty(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	before := f.RefillCount()
	blk, err := f.NextBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, block.Size, blk.Remaining())

	waitUntil(t, func() bool { return f.RefillCount() > before })
	require.Equal(t, QueueSize-1, f.QueueLen())
}

func TestRefillIsSingleFlight(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.refill()
		}()
	}
	wg.Wait()

	require.Equal(t, QueueSize, f.QueueLen())
	require.EqualValues(t, 1, f.RefillCount())
}

func TestCursorAdvancesAcrossRefills(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	f.refill()
	first := f.CursorValue()

	// Drain so the next refill is meaningful, then force a second refill.
	for len(f.queue) > 0 {
		<-f.queue
	}
	f.refill()
	second := f.CursorValue()

	require.Greater(t, second, first)
}

func TestNoDuplicateItemsAcrossManyBlocks(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	seen := make(map[uint64]struct{})
	for i := 0; i < QueueSize*3; i++ {
		blk, err := f.NextBlock(context.Background())
		require.NoError(t, err)
		for {
			item, ok := blk.TakeNext()
			if !ok {
				break
			}
			_, dup := seen[item]
			require.False(t, dup, "duplicate item %d", item)
			seen[item] = struct{}{}
		}
	}
}

func TestNextBlockConcurrentNoDuplicates(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	const workers = 10
	const perWorker = 1100

	var mu sync.Mutex
	seen := make(map[uint64]struct{})
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := 0
			var blk block.Block[uint64]
			haveBlock := false
			for got < perWorker {
				if !haveBlock || blk.Remaining() == 0 {
					b, err := f.NextBlock(context.Background())
					require.NoError(t, err)
					blk = b
					haveBlock = true
				}
				item, ok := blk.TakeNext()
				if !ok {
					haveBlock = false
					continue
				}
				mu.Lock()
				_, dup := seen[item]
				seen[item] = struct{}{}
				mu.Unlock()
				require.False(t, dup, "duplicate item %d", item)
				got++
			}
		}()
	}
	wg.Wait()
}

func TestNextBlockRespectsContextCancellation(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	// Simulate a refill already in flight elsewhere that never completes,
	// so this call's own refill attempt loses the CAS and the queue stays
	// empty for the duration of the test.
	f.refillInProgress.Store(true)
	defer f.refillInProgress.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.NextBlock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefillStopsEarlyOnFullQueue(t *testing.T) {
	f := New[uint64](seqConstructor(), false)

	// Pre-fill the queue entirely so a refill can enqueue nothing.
	f.refill()
	require.Equal(t, QueueSize, f.QueueLen())

	f.refill()
	require.Equal(t, QueueSize, f.QueueLen())
	require.EqualValues(t, 2, f.RefillCount())
}
