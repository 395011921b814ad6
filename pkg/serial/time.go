package serial

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/Boyux/fastsend/pkg/config"
)

// globalSlotSize bounds how many outstanding serials TimeSerializer
// tracks before pruning the older half, matching the original's
// GLOBAL_SLOT_SIZE.
const globalSlotSize = 9999

var (
	slotMu   sync.RWMutex
	slot     = make(map[string]int64, globalSlotSize)
	slotOnce sync.Once
)

// TimeSerializer produces a 21-digit, human-readable serial: a 14-digit
// local timestamp (YYYYMMDDHHMMSS), a 3-digit device id, and a 4-digit
// hash of the fed bytes mod 10000. Collisions within the same second are
// resolved by retrying against a global in-memory dedup slot rather than
// failing.
type TimeSerializer struct {
	data []byte
}

// NewTimeSerializer returns a ready-to-feed TimeSerializer.
func NewTimeSerializer() *TimeSerializer {
	return &TimeSerializer{data: make([]byte, 0, 8)}
}

// Feed implements Feeder.
func (s *TimeSerializer) Feed(data []byte) {
	s.data = append(s.data, data...)
}

// Build resolves a serial, retrying across second boundaries until it
// finds one absent from the global slot or ctx is cancelled.
func (s *TimeSerializer) Build(ctx context.Context) (string, error) {
	deviceID, ok := config.DeviceID()
	if !ok {
		deviceID = config.RandomValue()
	}

	h := fnv.New64a()
	_, _ = h.Write(s.data)
	sum := h.Sum64()
	identPart := (sum ^ (sum >> 32)) % 10000

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		now := time.Now()
		candidate := fmt.Sprintf("%014d%03d%04d", timestampDigits(now), deviceID, identPart)

		slotMu.RLock()
		_, taken := slot[candidate]
		slotMu.RUnlock()
		if taken {
			time.Sleep(time.Millisecond)
			continue
		}

		slotMu.Lock()
		if _, taken := slot[candidate]; taken {
			slotMu.Unlock()
			time.Sleep(time.Millisecond)
			continue
		}
		slot[candidate] = now.Unix()
		if len(slot) > globalSlotSize {
			pruneSlotLocked()
		}
		slotMu.Unlock()

		return candidate, nil
	}
}

func timestampDigits(t time.Time) int64 {
	return int64(t.Year())*10000000000 +
		int64(t.Month())*100000000 +
		int64(t.Day())*1000000 +
		int64(t.Hour())*10000 +
		int64(t.Minute())*100 +
		int64(t.Second())
}

// pruneSlotLocked drops every entry older than the median timestamp
// currently held, leaving the slot roughly half-empty. Caller must hold
// slotMu for writing.
func pruneSlotLocked() {
	seen := make(map[int64]struct{}, len(slot))
	for _, ts := range slot {
		seen[ts] = struct{}{}
	}
	if len(seen) <= 1 {
		return
	}

	sorted := make([]int64, 0, len(seen))
	for ts := range seen {
		sorted = append(sorted, ts)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := sorted[len(sorted)/2]

	for k, ts := range slot {
		if ts < mid {
			delete(slot, k)
		}
	}
}
