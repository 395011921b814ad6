package cursor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// resetState restores package-level singletons between tests, since Current
// memoizes bootstrap via sync.Once.
func resetState(t *testing.T) {
	t.Helper()
	bootstrapOnce = sync.Once{}
	bootstrapSecs = 0
	processStart = time.Time{}
	nowFunc = time.Now
	sleepFunc = time.Sleep
	onFatal = func(format string, args ...any) {
		panic(fmt.Errorf(format, args...))
	}
}

func TestCurrentMonotonicAcrossCalls(t *testing.T) {
	resetState(t)

	first := Current()
	time.Sleep(2 * time.Millisecond)
	second := Current()

	require.GreaterOrEqual(t, uint32(second), uint32(first))
}

func TestNextIsStrictlyGreater(t *testing.T) {
	resetState(t)

	base := Current()
	next := base.Next()

	require.Greater(t, uint32(next), uint32(base))
}

func TestNextSpinsAcrossFrozenClock(t *testing.T) {
	resetState(t)

	frozen := time.Unix(epochUnix+100, 0)
	tick := 0
	nowFunc = func() time.Time {
		// The first call bootstraps; the clock stays frozen through the
		// 5th call and reads 2s later from the 6th call on, simulating a clock stall the spec calls out explicitly
		// (scenario 5: "freeze the wall clock for 1.5s while draining").
		tick++
		if tick > 5 {
			return frozen.Add(2 * time.Second)
		}
		return frozen
	}
	sleepFunc = func(time.Duration) {}

	base := Current()
	next := base.Next()

	require.Greater(t, uint32(next), uint32(base))
}

func TestBootstrapBeforeEpochIsFatal(t *testing.T) {
	resetState(t)

	nowFunc = func() time.Time {
		return time.Unix(epochUnix-10, 0)
	}

	require.Panics(t, func() {
		Current()
	})
}

func TestOverflowIsFatal(t *testing.T) {
	resetState(t)

	// Bootstrap succeeds at a valid timestamp...
	start := time.Unix(epochUnix, 0)
	nowFunc = func() time.Time { return start }
	require.NotPanics(t, func() { Current() })

	// ...then elapsed time is pushed far enough to overflow uint32 seconds.
	nowFunc = func() time.Time {
		return start.Add(time.Duration(1<<32+10) * time.Second)
	}

	require.Panics(t, func() {
		Current()
	})
}
