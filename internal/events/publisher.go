// Package events publishes a record of every minted Token onto NATS
// JetStream, for downstream consumers that want a live feed of issued
// ids without querying the generator directly. This is purely an
// observability side channel: nothing here feeds back into token
// minting, and a publish failure never blocks or fails NextToken.
//
// Grounded on internal/nats/publisher.go (Publisher, NewPublisher).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	streamName       = "FASTSEND"
	subjectPattern   = "FASTSEND.*"
	streamCreateWait = 10 * time.Second
	duplicateWindow  = 20 * time.Minute
)

// TokenMinted is the payload published for every dispensed Token.
type TokenMinted struct {
	ID       uint64    `json:"id"`
	Cursor   uint32    `json:"cursor"`
	MintedAt time.Time `json:"minted_at"`
}

// Publisher publishes TokenMinted records to a NATS JetStream stream with
// id-based deduplication.
type Publisher struct {
	js      jetstream.JetStream
	nc      *nats.Conn
	logger  *zerolog.Logger
	subject string
}

// NewPublisher connects to natsURL and ensures the FASTSEND stream
// exists, creating or updating it as needed.
func NewPublisher(natsURL string, retain time.Duration, subject string, logger *zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("fastsend-idgen"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateWait)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPattern},
		MaxAge:     retain,
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
		Retention:  jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: create or update stream: %w", err)
	}

	logger.Info().
		Str("stream", streamName).
		Str("subject", subject).
		Dur("max_age", retain).
		Msg("token event publisher initialized")

	return &Publisher{js: js, nc: nc, logger: logger, subject: subject}, nil
}

// Publish announces one minted Token. The NATS message id is the
// stringified Token id, so republishing the same id is a safe no-op
// within the duplicate window instead of a duplicate downstream event.
func (p *Publisher) Publish(ctx context.Context, id uint64, cur uint32) error {
	evt := TokenMinted{ID: id, Cursor: cur, MintedAt: time.Now()}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal token event: %w", err)
	}

	msgID := strconv.FormatUint(id, 10)
	if _, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(msgID)); err != nil {
		p.logger.Error().Err(err).Uint64("id", id).Msg("failed to publish token event")
		return fmt.Errorf("events: publish: %w", err)
	}

	return nil
}

// Close closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info().Msg("token event publisher closed")
	}
}

// Healthy reports whether the NATS connection is currently up.
func (p *Publisher) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}
