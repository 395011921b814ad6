// Package dedupe backs pkg/serial's TicketSerializer and
// AutoIncrementSerializer with real external state: a Postgres table for
// ticket uniqueness and a Postgres sequence for the auto-increment
// engine. Neither of these participates in pkg/token id generation —
// they exist only because pkg/serial's contract explicitly allows
// serializers to depend on an external system, unlike token ids, which
// must resolve instantly and infallibly.
//
// Grounded on Outblock-flowindex/backend/internal/repository/postgres.go
// (pgxpool.New wiring) and tip_height.go (QueryRow usage style).
package dedupe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a Postgres connection pool used for both ticket dedup and
// auto-increment sequencing.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the supporting schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dedupe: connect: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fastsend_tickets (
			ticket     TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("dedupe: create tickets table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `CREATE SEQUENCE IF NOT EXISTS fastsend_autoincrement`)
	if err != nil {
		return fmt.Errorf("dedupe: create autoincrement sequence: %w", err)
	}

	return nil
}

// Inspect implements serial.Inspect: it atomically claims ticket if free
// (INSERT ... ON CONFLICT DO NOTHING) and reports whether it was already
// taken, so a TicketSerializer never has to issue a separate claim call.
func (s *Store) Inspect(ctx context.Context, ticket string) (exists bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fastsend_tickets (ticket) VALUES ($1)
		ON CONFLICT (ticket) DO NOTHING`, ticket)
	if err != nil {
		return false, fmt.Errorf("dedupe: inspect ticket: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// IncrementEngine implements serial.IncrementEngine backed by the
// fastsend_autoincrement Postgres sequence.
type IncrementEngine struct {
	store *Store
}

// NewIncrementEngine builds an IncrementEngine over store.
func NewIncrementEngine(store *Store) *IncrementEngine {
	return &IncrementEngine{store: store}
}

// Incr advances the Postgres sequence and returns its new value. last is
// unused: the sequence is authoritative and monotonic regardless of what
// the caller last observed.
func (e *IncrementEngine) Incr(ctx context.Context, last int64) (int64, error) {
	var next int64
	err := e.store.pool.QueryRow(ctx, `SELECT nextval('fastsend_autoincrement')`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("dedupe: advance sequence: %w", err)
	}
	return next, nil
}
