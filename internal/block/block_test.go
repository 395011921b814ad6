package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Boyux/fastsend/internal/cursor"
)

func TestBlockDispensesExactlySize(t *testing.T) {
	var items [Size]int
	for i := range items {
		items[i] = i
	}
	b := New(items)

	require.Equal(t, Size, b.Remaining())

	got := make([]int, 0, Size)
	for {
		item, ok := b.TakeNext()
		if !ok {
			break
		}
		got = append(got, item)
	}

	require.Len(t, got, Size)
	require.Equal(t, 0, b.Remaining())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, got)

	_, ok := b.TakeNext()
	require.False(t, ok)
}

func TestConstructorFunc(t *testing.T) {
	c := ConstructorFunc[int](func(n uint16, cur cursor.Cursor) Block[int] {
		var items [Size]int
		for i := range items {
			items[i] = int(n)*Size + i
		}
		return New(items)
	})

	blk := c.Construct(3, cursor.FromUint32(42))
	item, ok := blk.TakeNext()
	require.True(t, ok)
	require.Equal(t, 24, item)
}
