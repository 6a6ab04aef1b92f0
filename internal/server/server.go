package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/metrics"
	"github.com/desertthunder/lbx/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router registers handlers behind a middleware stack.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const shutdownTimeout = 5 * time.Second

// Options wires the collaborators served by [Server].
type Options struct {
	Addr   string
	Agent  Agent
	Runs   RunHistory
	Tracks TrackCounter
	Logger *log.Logger
}

// Server exposes playback notifications, manual sync, status and metrics over HTTP.
type Server struct {
	addr    string
	handler http.Handler
	logger  *log.Logger
}

// New builds the router for the local service.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	metrics.Register()

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(NewPlaybackHandler(opts.Agent, logger))
	router.Handler(NewSyncHandler(opts.Agent, logger))
	router.Handler(NewStatusHandler(opts.Agent, opts.Runs, opts.Tracks))
	router.Handle(http.MethodGet, "/metrics", metrics.Handler())

	return &Server{addr: opts.Addr, handler: router, logger: logger}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}
