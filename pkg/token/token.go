// Package token implements fastsend's primary identifier: a Token pairs a
// Cursor (when) with an Ident (what, among concurrent producers at that
// moment) and packs down to a single uint64 fit for a database primary
// key.
//
// Grounded on original_source/src/token/mod.rs (Token, Ident, cd()).
package token

import (
	"encoding/binary"
	"hash/maphash"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Boyux/fastsend/internal/block"
	"github.com/Boyux/fastsend/internal/cursor"
	"github.com/Boyux/fastsend/pkg/config"
	"github.com/Boyux/fastsend/pkg/serial"
)

// Ident carries the non-temporal half of a Token's identity: a batch
// offset unique within one refill generation (A, B) plus two bytes of
// device/process/call entropy (C, D).
type Ident struct {
	A, B, C, D uint8
}

func newIdent(n uint16) Ident {
	a := uint8(n >> 8)
	b := uint8(n)
	c := deviceByte()
	d := callTagByte()
	return Ident{A: a, B: b, C: c, D: d}
}

func (id Ident) construct() uint32 {
	return uint32(id.A)<<24 | uint32(id.B)<<16 | uint32(id.C)<<8 | uint32(id.D)
}

var (
	processIDOnce sync.Once
	processIDByte uint8
)

// deviceByte returns the configured device id, or the low 8 bits of the
// OS process id when none is configured.
func deviceByte() uint8 {
	if id, ok := config.DeviceID(); ok {
		return id
	}
	processIDOnce.Do(func() { processIDByte = uint8(os.Getpid()) })
	return processIDByte
}

var (
	callSeed    = maphash.MakeSeed()
	callCounter atomic.Uint64
)

// callTagByte hashes a monotonically increasing per-process call number
// with a randomly seeded maphash.Hash, folding the 64-bit sum into one
// byte the same way the original folds a hashed thread id: top 32 bits
// xor bottom 32 bits. Go exposes no stable thread/goroutine identifier,
// so a call sequence number stands in for "which concurrent invocation
// produced this Ident" — maphash's random seed still defeats an attacker
// trying to predict the byte from the counter alone.
func callTagByte() uint8 {
	n := callCounter.Add(1)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)

	var h maphash.Hash
	h.SetSeed(callSeed)
	_, _ = h.Write(buf[:])
	sum := h.Sum64()

	return uint8(sum ^ (sum >> 32))
}

// Token is a complete, independent identifier: Cursor plus Ident.
type Token struct {
	cursor cursor.Cursor
	ident  Ident
}

// ID packs the Token into a uint64: the Cursor's 4 bytes followed by the
// Ident's 4 bytes, big-endian.
func (t Token) ID() uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], t.cursor.Uint32())
	binary.BigEndian.PutUint32(buf[4:8], t.ident.construct())
	return binary.BigEndian.Uint64(buf[:])
}

// Cursor returns the Token's time anchor.
func (t Token) Cursor() cursor.Cursor {
	return t.cursor
}

// SerialInto implements serial.Serial, feeding a Feeder the same bytes ID
// packs, split as two 4-byte chunks.
func (t Token) SerialInto(f serial.Feeder) {
	var curBytes, identBytes [4]byte
	binary.BigEndian.PutUint32(curBytes[:], t.cursor.Uint32())
	binary.BigEndian.PutUint32(identBytes[:], t.ident.construct())
	f.Feed(curBytes[:])
	f.Feed(identBytes[:])
}

type tokenConstructor struct{}

// Construct implements block.Constructor[Token]: it builds a full Block
// of Tokens sharing one Cursor, with batch-offset-derived A/B bytes
// guaranteeing no two Tokens from the same refill generation collide.
func (tokenConstructor) Construct(n uint16, cur cursor.Cursor) block.Block[Token] {
	var items [block.Size]Token
	for i := range items {
		offset := n*uint16(block.Size) + uint16(i)
		items[i] = Token{cursor: cur, ident: newIdent(offset)}
	}
	return block.New(items)
}

// Constructor is the block.Constructor[Token] used to drive the global
// dispenser.
var Constructor block.Constructor[Token] = tokenConstructor{}
