package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/tollgate/pkg/address"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/selector"
	"mercator-hq/tollgate/pkg/server/middleware"
	"mercator-hq/tollgate/pkg/telemetry"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
	"mercator-hq/tollgate/pkg/tps"
)

// readinessRPS bounds readiness probes, which ping the rule store.
const readinessRPS = 20

// Deps are the components the server exposes.
type Deps struct {
	// Manager answers admission checks. Required.
	Manager *tps.Manager

	// Reloader applies rule changes. Required.
	Reloader *rules.Reloader

	// Telemetry provides logging, metrics, tracing and health. Required.
	Telemetry *telemetry.Telemetry

	// Servers backs the cluster endpoints. Optional.
	Servers *address.ServerListManager

	// Selectors lists the selector kinds accepted by /v1/cluster/select,
	// keyed by type. Nil registers the label selector only.
	Selectors map[string]selector.Selector
}

// Server is the tollgate admin and check HTTP server.
type Server struct {
	config    *config.Config
	deps      Deps
	logger    *slog.Logger
	mux       *http.ServeMux
	handler   http.Handler
	selectors map[string]selector.Selector

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// New creates a server and builds its routes.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Manager == nil || deps.Reloader == nil || deps.Telemetry == nil {
		return nil, errors.New("server: manager, reloader and telemetry are required")
	}

	selectors := deps.Selectors
	if selectors == nil {
		selectors = map[string]selector.Selector{
			selector.LabelSelectorType: selector.NewLabelSelector(),
		}
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		logger:    deps.Telemetry.Logger.With("component", "server"),
		mux:       http.NewServeMux(),
		selectors: selectors,
	}
	s.registerHealthChecks()
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) setupRoutes() http.Handler {
	tel := s.deps.Telemetry
	tcfg := s.config.Telemetry

	if tcfg.Health.Enabled {
		s.mux.HandleFunc(tcfg.Health.LivenessPath, tel.Health.LivenessHandler())
		s.mux.HandleFunc(tcfg.Health.ReadinessPath, health.RateLimitedHandler(tel.Health.ReadinessHandler(), readinessRPS))
		s.mux.HandleFunc("GET /version", health.VersionHandler(tel.Build.Version, tel.Build.Commit, tel.Build.BuildTime))
	}
	if tcfg.Metrics.Enabled {
		s.mux.Handle(tcfg.Metrics.Path, tel.Metrics.Handler())
	}

	s.mux.HandleFunc("POST /v1/tps/check", s.handleCheck)
	s.mux.HandleFunc("GET /v1/tps/points", s.handleListPoints)
	s.mux.HandleFunc("GET /v1/tps/points/{name}/rule", s.handleGetRule)
	s.mux.HandleFunc("PUT /v1/tps/points/{name}/rule", s.handlePutRule)
	s.mux.HandleFunc("DELETE /v1/tps/points/{name}/rule", s.handleDeleteRule)
	s.mux.HandleFunc("GET /v1/tps/points/{name}/stats", s.handleStats)
	s.mux.HandleFunc("GET /v1/rules/status", s.handleRulesStatus)
	s.mux.HandleFunc("POST /v1/rules/reload", s.handleRulesReload)
	s.mux.HandleFunc("GET /v1/cluster/servers", s.handleServers)
	s.mux.HandleFunc("POST /v1/cluster/select", s.handleSelect)

	return middleware.Chain(s.mux,
		middleware.RecoveryMiddleware(tel.Logger),
		middleware.RequestIDMiddleware,
		tracing.HTTPMiddleware(tel.Tracer, s.route),
		middleware.LoggingMiddleware(tel.Logger, s.route, tel.Metrics.RecordRequest),
		middleware.MaxBodyMiddleware(s.config.Server.MaxBodyBytes),
	)
}

// route returns the registered pattern serving r without its method, or
// "unmatched".
func (s *Server) route(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

func (s *Server) registerHealthChecks() {
	checker := s.deps.Telemetry.Health
	reloader := s.deps.Reloader

	checker.RegisterCheck("rule_store", health.PingCheck(reloader.Store()))
	if reloader.Path() != "" {
		checker.RegisterCheck("rules_file", func(ctx context.Context) error {
			if err := reloader.CheckFile(ctx); err != nil {
				return err
			}
			return health.LastErrorCheck(func() string { return reloader.Status().LastError })(ctx)
		})
	}
	if want := len(s.config.TPS.Points); want > 0 {
		checker.RegisterCheck("tps_points", health.MinCountCheck("points", want, func() int {
			return len(s.deps.Manager.Points())
		}))
	}
}
