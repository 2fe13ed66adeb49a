// Package rpc exposes the vault engine over HTTP.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rwavault/core/events"
	"rwavault/native/vault"
	"rwavault/services/eventsink"
)

// EventArchive pages through archived events.
type EventArchive interface {
	List(ctx context.Context, afterSeq uint64, limit int) ([]eventsink.Record, error)
}

// Config bounds the HTTP surface.
type Config struct {
	RateLimitPerMin float64
	Burst           int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Server serves the vault API. Engine calls are serialised because the
// engine's state journal is single-writer.
type Server struct {
	engine      *vault.Engine
	broadcaster *events.Broadcaster
	archive     EventArchive
	limiter     *RateLimiter
	logger      *slog.Logger
	cfg         Config

	engineMu sync.Mutex

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer wires the engine and event stream into an HTTP server.
// broadcaster may be nil, in which case the websocket stream is disabled.
func NewServer(engine *vault.Engine, broadcaster *events.Broadcaster, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rpc")
	return &Server{
		engine:      engine,
		broadcaster: broadcaster,
		limiter:     NewRateLimiter(cfg.RateLimitPerMin, cfg.Burst, logger),
		logger:      logger,
		cfg:         cfg,
	}
}

// SetArchive enables GET /v1/events backed by archive.
func (s *Server) SetArchive(archive EventArchive) { s.archive = archive }

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(instrument(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware)
		v1.Get("/vault", s.handleOverview)
		v1.Get("/vault/value", s.handleVaultValue)
		v1.Get("/vault/allocation", s.handleAllocation)
		v1.Get("/accounts/{address}", s.handleAccount)
		v1.Get("/strategies", s.handleStrategies)
		v1.Get("/events", s.handleEvents)
		v1.Get("/events/ws", s.handleEventsWS)
		v1.Post("/{operation}", s.handleOperation)
	})
	return otelhttp.NewHandler(r, "rwavault.rpc")
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves the API.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// archiveFlusher is implemented by archives that buffer failed writes.
type archiveFlusher interface {
	Flush(ctx context.Context) error
}

// RunMaintenance extends retention of persistent entries and retries pending
// archive writes every interval until ctx is cancelled.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var err error
			s.withEngine(func() { _, err = s.engine.ExtendRetention() })
			if err != nil {
				s.logger.Warn("retention maintenance failed", "error", err)
			}
			if flusher, ok := s.archive.(archiveFlusher); ok {
				if err := flusher.Flush(ctx); err != nil {
					s.logger.Warn("archive backlog flush failed", "error", err)
				}
			}
		}
	}
}

// withEngine runs fn while holding the engine lock.
func (s *Server) withEngine(fn func()) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	fn()
}
