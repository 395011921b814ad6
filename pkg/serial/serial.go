// Package serial implements fastsend's second identifier family:
// human-facing serial numbers built by feeding bytes into a Builder and
// then resolving it, as opposed to the pkg/token family's instant,
// infallible 64-bit ids. Unlike token construction, resolving a Builder
// is allowed to be async (it may consult a database or an external
// uniqueness oracle) and allowed to fail.
//
// Grounded on original_source/src/serial/mod.rs (the Serial/Serialer
// traits).
package serial

import "context"

// Feeder accepts raw bytes that influence the serial a Builder produces.
// Feeding the same bytes to two different Builder instances is not
// required to produce the same output — only uniqueness within one
// Builder's own output stream is guaranteed.
type Feeder interface {
	Feed(data []byte)
}

// Serial is implemented by anything that can describe itself to a
// Feeder, e.g. pkg/token.Token feeding its Cursor and Ident bytes.
type Serial interface {
	SerialInto(f Feeder)
}

// Builder produces values of type O from the bytes fed to it. Whether one
// Builder instance may be built more than once depends on the
// implementation: AutoIncrementSerializer advances on every Build call.
type Builder[O any] interface {
	Feeder
	Build(ctx context.Context) (O, error)
}
