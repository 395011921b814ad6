package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeSerializerProducesDistinctSerials(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s := NewTimeSerializer()
		s.Feed([]byte{byte(i)})
		out, err := s.Build(context.Background())
		require.NoError(t, err)
		require.Len(t, out, 21)
		_, dup := seen[out]
		require.False(t, dup)
		seen[out] = struct{}{}
	}
}

func TestUUIDSerializerVersions(t *testing.T) {
	v3 := NewUUIDSerializer(UUIDv3)
	v3.Feed([]byte("fastsend"))
	u3, err := v3.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, int(u3.Version()))

	v4 := NewUUIDSerializer(UUIDv4)
	u4, err := v4.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, int(u4.Version()))

	v5 := NewUUIDSerializer(UUIDv5)
	v5.Feed([]byte("fastsend"))
	u5, err := v5.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, int(u5.Version()))
}

func TestRandom62SerializerLength(t *testing.T) {
	s := NewRandom62Serializer()
	out, err := s.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, out, random62Length)
}

func TestTicketSerializerRetriesOnCollision(t *testing.T) {
	calls := 0
	inspect := func(ctx context.Context, ticket string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	s := NewTicketSerializer(inspect)
	out, err := s.Build(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, 3, calls)
}

func TestTicketSerializerMaxRetry(t *testing.T) {
	inspect := func(ctx context.Context, ticket string) (bool, error) { return true, nil }
	s := NewTicketSerializer(inspect, RetryTimes(2))

	_, err := s.Build(context.Background())
	require.ErrorIs(t, err, ErrMaxRetry)
}

func TestTicketSerializerInspectError(t *testing.T) {
	boom := errors.New("boom")
	inspect := func(ctx context.Context, ticket string) (bool, error) { return false, boom }
	s := NewTicketSerializer(inspect)

	_, err := s.Build(context.Background())
	require.ErrorIs(t, err, boom)
}

type fakeEngine struct{ calls int }

func (f *fakeEngine) Incr(ctx context.Context, last int64) (int64, error) {
	f.calls++
	if last == Uninitialized {
		return 1, nil
	}
	return last + 1, nil
}

func TestAutoIncrementSerializerAdvances(t *testing.T) {
	eng := &fakeEngine{}
	s := NewAutoIncrementSerializer(eng, "ORD-", 6)

	first, err := s.Build(context.Background())
	require.NoError(t, err)
	second, err := s.Build(context.Background())
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Contains(t, first, "ORD-000001")
	require.Contains(t, second, "ORD-000002")
}
