// Command idgen is a small HTTP front end around fastsend: it exposes id
// minting, an optional live WebSocket feed of minted ids, Prometheus
// metrics, and a health check, wired the same way the teacher wires its
// metrics/health servers around a worker loop.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Boyux/fastsend"
	"github.com/Boyux/fastsend/internal/dedupe"
	"github.com/Boyux/fastsend/internal/events"
	"github.com/Boyux/fastsend/internal/registry"
	"github.com/Boyux/fastsend/internal/stream"
	"github.com/Boyux/fastsend/pkg/appconfig"
	"github.com/Boyux/fastsend/pkg/config"
	"github.com/Boyux/fastsend/pkg/obslog"
	"github.com/Boyux/fastsend/pkg/serial"
)

const serviceName = "fastsend-idgen"

var (
	tokensMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastsend_tokens_minted_total",
		Help: "Total number of tokens minted by this process.",
	})
	mintErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastsend_mint_errors_total",
		Help: "Total number of failed NextToken calls, by cause.",
	}, []string{"cause"})
)

func main() {
	logger := obslog.Init(serviceName)
	logger.Info().Msg("starting fastsend id generator")

	ko, cfg, err := appconfig.Load(logger, "config.toml")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	obslog.UpdateLevel(ko, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deviceID, hasDeviceID := config.DeviceID()
	randomValue := config.RandomValue()
	logger.Info().
		Uint8("device_id", deviceID).
		Bool("has_device_id", hasDeviceID).
		Uint8("random_value", randomValue).
		Msg("resolved process identity")

	var reg *registry.Registry
	if cfg.Registry.Enabled {
		reg, err = registry.Open(cfg.Registry.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open registry")
		}
		defer reg.Close()

		if err := reg.RecordBoot(ctx, registry.CurrentBootRecord(deviceID, hasDeviceID, randomValue)); err != nil {
			logger.Error().Err(err).Msg("failed to record boot in registry")
		}
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(cfg.Events.URL, 20*time.Minute, cfg.Events.Subject, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create event publisher")
		}
		defer publisher.Close()
	}

	var hub *stream.Hub
	if cfg.Stream.Enabled {
		hub = stream.NewHub(logger)
		hubDone := make(chan struct{})
		go hub.Run(hubDone)
		defer close(hubDone)
	}

	var store *dedupe.Store
	if cfg.Dedupe.Enabled {
		store, err = dedupe.Open(ctx, cfg.Dedupe.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open dedupe store")
		}
		defer store.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(logger, publisher, hub))
	if store != nil {
		mux.HandleFunc("/serial/ticket", ticketHandler(store))
		mux.HandleFunc("/serial/autoincrement", autoIncrementHandler(dedupe.NewIncrementEngine(store)))
	}
	if hub != nil {
		mux.HandleFunc("/stream", hub.ServeHTTP)
	}

	apiServer := &http.Server{Addr: cfg.Health.Addr, Handler: withHealthCheck(mux)}
	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler()}

	go func() {
		logger.Info().Str("address", cfg.Metrics.Addr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	go func() {
		logger.Info().Str("address", cfg.Health.Addr).Msg("starting api server")
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

func withHealthCheck(mux *http.ServeMux) http.Handler {
	h := http.NewServeMux()
	h.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	h.Handle("/", mux)
	return h
}

type tokenResponse struct {
	ID     uint64 `json:"id"`
	Cursor uint32 `json:"cursor"`
}

// tokenHandler mints one Token per request and, when wired, announces it
// on the event publisher and the live WebSocket feed. Both side effects
// are best-effort: a failure to publish or broadcast never fails the
// response, since the token has already been minted and handed to the
// caller.
func tokenHandler(logger *zerolog.Logger, publisher *events.Publisher, hub *stream.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := fastsend.NextToken(r.Context())
		if err != nil {
			mintErrors.WithLabelValues(causeOf(err)).Inc()
			logger.Error().Err(err).Msg("failed to mint token")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		tokensMinted.Inc()

		id := tok.ID()
		cursor := uint32(tok.Cursor())

		if publisher != nil {
			if err := publisher.Publish(r.Context(), id, cursor); err != nil {
				logger.Warn().Err(err).Uint64("id", id).Msg("failed to publish minted token")
			}
		}
		if hub != nil {
			hub.Broadcast(id, cursor)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{ID: id, Cursor: cursor})
	}
}

func causeOf(err error) string {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return "context"
	}
	return "internal"
}

type ticketRequest struct {
	Seed string `json:"seed"`
}

// ticketHandler demonstrates pkg/serial's TicketSerializer wired to a
// real external uniqueness oracle (internal/dedupe's Postgres table).
func ticketHandler(store *dedupe.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ticketRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		ser := serial.NewTicketSerializer(store.Inspect)
		ser.Feed([]byte(req.Seed))

		out, err := ser.Build(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket": out})
	}
}

// autoIncrementHandler demonstrates pkg/serial's AutoIncrementSerializer
// wired to a Postgres sequence.
func autoIncrementHandler(engine *dedupe.IncrementEngine) http.HandlerFunc {
	ser := serial.NewAutoIncrementSerializer(engine, "ID-", 8)
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := ser.Build(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"serial": out})
	}
}
