package serial

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/Boyux/fastsend/pkg/config"
)

// ErrMaxRetry is returned when a TicketSerializer exhausts its retry
// budget without finding a ticket the Inspect callback reports as free.
var ErrMaxRetry = errors.New("serial: ticket exhausted retries against inspector")

// Inspect reports whether ticket is already in use. It is the caller's
// uniqueness oracle (typically backed by a database), mirroring the
// original's InspectFnMut.
type Inspect func(ctx context.Context, ticket string) (exists bool, err error)

// TicketSerializer produces a configurable alphanumeric ticket of the
// shape "XXXX-XXXXXX-XXXXX-XXXXX-XX" (or a shorter variant), retrying
// against an external Inspect oracle when a candidate is already taken.
type TicketSerializer struct {
	shortRepr   bool
	noSep       bool
	lowercase   bool
	retryTimes  int
	data        []byte
	inspect     Inspect
}

// TicketOption configures a TicketSerializer at construction time.
type TicketOption func(*TicketSerializer)

// ShortRepr drops the device/checksum segments, producing
// "XXXX-XXXXXX-XXXXX" instead of the full five-segment form.
func ShortRepr() TicketOption { return func(t *TicketSerializer) { t.shortRepr = true } }

// NoSeparator omits the "-" joiners between segments.
func NoSeparator() TicketOption { return func(t *TicketSerializer) { t.noSep = true } }

// Lowercase lowercases the alphabetic segments.
func Lowercase() TicketOption { return func(t *TicketSerializer) { t.lowercase = true } }

// RetryTimes overrides the default retry budget of 10.
func RetryTimes(n int) TicketOption {
	return func(t *TicketSerializer) { t.retryTimes = n }
}

// NewTicketSerializer constructs a TicketSerializer backed by inspect.
func NewTicketSerializer(inspect Inspect, opts ...TicketOption) *TicketSerializer {
	t := &TicketSerializer{retryTimes: 10, inspect: inspect}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Feed implements Feeder.
func (t *TicketSerializer) Feed(data []byte) {
	t.data = append(t.data, data...)
}

// Build resolves the ticket, borrowing a second further into the future
// on each retry so a freshly colliding candidate is very unlikely to
// collide twice in a row.
func (t *TicketSerializer) Build(ctx context.Context) (string, error) {
	h := fnv.New32a()
	_, _ = h.Write(t.data)
	tail := h.Sum32()

	now := time.Now()
	for attempt := 0; attempt <= t.retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		candidate := t.render(now.Add(time.Duration(attempt)*time.Second), tail)

		exists, err := t.inspect(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("serial: inspect ticket: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", ErrMaxRetry
}

func (t *TicketSerializer) render(ts time.Time, tail uint32) string {
	datePart := fmt.Sprintf("%04d", ts.Year()%10000)
	timePart := fmt.Sprintf("%02d%02d%02d", ts.Hour(), ts.Minute(), ts.Second())
	middlePart := fmt.Sprintf("%05d", tail%100000)

	segments := []string{datePart, timePart, middlePart}

	if !t.shortRepr {
		deviceID, ok := config.DeviceID()
		if !ok {
			deviceID = config.RandomValue()
		}
		tailPart := fmt.Sprintf("%05d", (tail/100000)%100000)
		authPart := fmt.Sprintf("%02d", deviceID%100)
		segments = append(segments, tailPart, authPart)
	}

	sep := "-"
	if t.noSep {
		sep = ""
	}
	out := strings.Join(segments, sep)

	if t.lowercase {
		out = strings.ToLower(out)
	}
	return out
}
