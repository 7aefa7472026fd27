package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/config"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// readTimeout bounds reading a request, headers included.
const readTimeout = 5 * time.Second

// HealthChecker is implemented by every component /readyz reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.MetricsConfig
	Logger  *logging.Logger
	Metrics http.Handler // Optional; /metrics is not routed when nil
	Checks  map[string]HealthChecker
	Version string
}

// Server is the operational HTTP server.
type Server struct {
	cfg     config.MetricsConfig
	logger  *logging.Logger
	metrics http.Handler
	version string

	mu       sync.RWMutex
	checks   map[string]HealthChecker
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Config.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		version: deps.Version,
		checks:  make(map[string]HealthChecker, len(deps.Checks)),
	}
	for name, c := range deps.Checks {
		s.checks[name] = c
	}
	return s, nil
}

// AddCheck registers a readiness check under name, replacing any previous one.
func (s *Server) AddCheck(name string, c HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = c
}

// Start binds the listener and serves in a background goroutine. Binding
// errors are returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// checkResult is the /readyz entry of one component.
type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runChecks runs every readiness check and reports whether all passed.
func (s *Server) runChecks(ctx context.Context) (map[string]checkResult, bool) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]checkResult, len(names))
	healthy := true
	for _, name := range names {
		if err := checks[name].HealthCheck(ctx); err != nil {
			healthy = false
			results[name] = checkResult{Status: "unhealthy", Error: err.Error()}
			continue
		}
		results[name] = checkResult{Status: "healthy"}
	}
	return results, healthy
}
