package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close()) })
	return r
}

func TestRecordAndListRecentBoots(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := CurrentBootRecord(uint8(i), true, 9)
		require.NoError(t, r.RecordBoot(ctx, rec))
	}

	recent, err := r.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestListRecentRespectsLimit(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.RecordBoot(ctx, CurrentBootRecord(0, false, 1)))
	}

	recent, err := r.ListRecent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, recent, 5)
}
