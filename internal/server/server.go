// ABOUTME: HTTP surface for the orchestrator: health, credential API, event streams, metrics
// ABOUTME: Serves on any listener (TCP or tailnet) and shuts down gracefully on context cancel

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/printauth/internal/auth"
	"github.com/2389/printauth/internal/authkey"
	"github.com/2389/printauth/internal/broadcast"
)

// DefaultMetricsPath is where metrics are served unless configured.
const DefaultMetricsPath = "/metrics"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Orchestrator is the view of the orchestrator the API needs.
type Orchestrator interface {
	Ready() bool
	Hosts() []string
	Available() []string
	Credentials() []authkey.Key
	Credential(host string) (authkey.Key, bool)
	Regenerate(ctx context.Context, host string) (authkey.Key, error)
}

// Subscriber hands out event subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *broadcast.Event, string)
}

// Options configures a Server. Verifier and Gatherer are optional.
type Options struct {
	Orchestrator Orchestrator
	Events       Subscriber
	// Verifier enables JWT auth on /api/ and /ws when set.
	Verifier auth.TokenVerifier
	// Gatherer enables the metrics endpoint when set.
	Gatherer    prometheus.Gatherer
	MetricsPath string
	// KeepAlive is the SSE comment interval. Zero uses 15s.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	orch      Orchestrator
	events    Subscriber
	keepAlive time.Duration
	logger    *slog.Logger

	handler    http.Handler
	httpServer *http.Server

	// baseCtx is the parent of every request context. Cancelling it ends
	// long-lived event streams so Shutdown does not wait on them.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		orch:       opts.Orchestrator,
		events:     opts.Events,
		keepAlive:  keepAlive,
		logger:     logger.With("component", "server"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	// API endpoints - auth required if a verifier is configured
	requireToken := auth.RequireToken(opts.Verifier)
	mux.Handle("GET /api/credentials", requireToken(http.HandlerFunc(s.handleListCredentials)))
	mux.Handle("GET /api/credentials/{host}", requireToken(http.HandlerFunc(s.handleGetCredential)))
	mux.Handle("POST /api/credentials/{host}/regenerate", requireToken(http.HandlerFunc(s.handleRegenerate)))
	mux.Handle("GET /api/events", requireToken(http.HandlerFunc(s.handleEvents)))
	mux.Handle("GET /ws", requireToken(http.HandlerFunc(s.handleWebSocket)))
	if opts.Verifier != nil {
		s.logger.Info("HTTP auth middleware enabled")
	} else {
		s.logger.Warn("HTTP auth disabled - no jwt_secret configured")
	}

	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = mux
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve serves on ln until ctx is cancelled or the server fails, then shuts
// down gracefully. Returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// ListenAndServe listens on addr over TCP and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the serving context is already canceled.
func (s *Server) gracefulShutdown() error {
	s.cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the initial setup pass has completed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.orch.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("setup in progress"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d credentials)", len(s.orch.Credentials()))
}
