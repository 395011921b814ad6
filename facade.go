// Package fastsend is a distributed, coordination-free generator of
// unique 64-bit Tokens. A single process-wide dispenser is refilled in
// large, shuffled batches so that concurrent callers almost always take
// an id from a local cache without touching shared state.
//
// Grounded on original_source/src/lib.rs (next_token, FRAME, with_block).
package fastsend

import (
	"context"
	"sync"

	"github.com/Boyux/fastsend/internal/dispenser"
	"github.com/Boyux/fastsend/pkg/token"
)

var (
	frameOnce sync.Once
	frame     *dispenser.Frame[token.Token]
	cache     *dispenser.Cache[token.Token]
)

func global() (*dispenser.Frame[token.Token], *dispenser.Cache[token.Token]) {
	frameOnce.Do(func() {
		frame = dispenser.New[token.Token](token.Constructor, false)
		cache = dispenser.NewCache[token.Token]()
	})
	return frame, cache
}

// NextToken returns the next Token from the process-wide dispenser. It
// is safe to call from any number of goroutines concurrently; ctx only
// bounds the rare path where the calling goroutine's cache is empty and
// a refill has to run first.
func NextToken(ctx context.Context) (token.Token, error) {
	f, c := global()
	return c.Dispense(ctx, f)
}

// NextID is a convenience wrapper around NextToken that returns the
// packed uint64 form directly, for callers that only want a database
// primary key and don't need the Token's structure.
func NextID(ctx context.Context) (uint64, error) {
	tok, err := NextToken(ctx)
	if err != nil {
		return 0, err
	}
	return tok.ID(), nil
}
