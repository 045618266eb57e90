// Package api provides the HTTP admin API for Hearth Core.
//
// It exposes plugin provisioning, device inspection, rule reloads, and
// manual command dispatch to operator tooling. The server follows the
// same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hearth-home/hearth-core/internal/hub"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/value"
	"github.com/hearth-home/hearth-core/internal/wire"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander is the slice of the coordinator the API needs.
// Satisfied by hub.Coordinator.
type Commander interface {
	SendCommand(ctx context.Context, pluginID string, cmd wire.Command) (*hub.Future, error)
	BroadcastCrud(ctx context.Context, notice wire.CrudNotice) error
	PendingRequests() int
}

// RuleReloader reloads and inspects the rule engine.
// Satisfied by rules.Engine.
type RuleReloader interface {
	Reload(ctx context.Context) error
	Snapshot() *rules.Ruleset
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Registry    *plugin.Registry
	Values      *value.Repository
	Coordinator Commander
	Rules       RuleReloader
	Version     string
}

// Server is the HTTP admin API server.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *plugin.Registry
	values   *value.Repository
	coord    Commander
	rules    RuleReloader
	version  string
	server   *http.Server
}

// New creates an API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("plugin registry is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		values:   deps.Values,
		coord:    deps.Coordinator,
		rules:    deps.Rules,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP requests in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("admin api listening", "addr", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin api server error", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin api: %w", err)
	}
	return nil
}
