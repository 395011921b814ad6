package fastsend

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextTokenNoDuplicatesConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*perWorker)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := NextID(context.Background())
				require.NoError(t, err)

				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				require.False(t, dup, "duplicate id %d", id)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
