// Package block implements the fixed-capacity draining buffer Blocks are
// built from, and the external construction capability that fills one.
//
// Grounded on original_source/src/block/mod.rs (Block<T>, ConstructBlock).
package block

import "github.com/Boyux/fastsend/internal/cursor"

// Size is the fixed number of items a Block holds, matching the original's
// Block::SIZE.
const Size = 8

// Block is a fixed, stack-sized array of Size items plus a take-count. It
// is a value type: copying a Block copies its array, so callers must treat
// a Block as living in exactly one logical place at a time (a queue slot,
// an in-flight value, or one caller's cache) even though Go's type system
// does not enforce move-only semantics the way the original Rust type's
// ownership discipline does.
type Block[T any] struct {
	items [Size]T
	taken int
}

// New constructs a Block from a fully populated array. The returned Block
// has Remaining() == Size.
func New[T any](items [Size]T) Block[T] {
	return Block[T]{items: items}
}

// TakeNext returns the next undispensed item and advances the take-count.
// ok is false once the Block is exhausted.
func (b *Block[T]) TakeNext() (item T, ok bool) {
	if b.taken >= Size {
		var zero T
		return zero, false
	}
	item = b.items[b.taken]
	b.taken++
	return item, true
}

// Remaining returns how many items this Block can still dispense, always
// in [0, Size].
func (b *Block[T]) Remaining() int {
	return Size - b.taken
}

// Constructor builds one Block for a given batch index and Cursor. n ranges
// over [0, QUEUE_SIZE) within a single refill generation; cursor is the
// generation's time anchor. Construct must be pure, must not block, and
// must not fail — a panic inside it is fatal to the refill goroutine (and,
// by design, to the process: see internal/dispenser).
type Constructor[T any] interface {
	Construct(n uint16, cur cursor.Cursor) Block[T]
}

// ConstructorFunc adapts a plain function to the Constructor interface.
type ConstructorFunc[T any] func(n uint16, cur cursor.Cursor) Block[T]

// Construct implements Constructor.
func (f ConstructorFunc[T]) Construct(n uint16, cur cursor.Cursor) Block[T] {
	return f(n, cur)
}
