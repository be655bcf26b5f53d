// Package api provides the HTTP REST API for Warden Core.
//
// It exposes the arbitration status, the audit trail, mode control and
// credential administration to operator tooling. The server follows the
// same lifecycle pattern as the other infrastructure components:
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
	"net/http"
	"time"

	"github.com/wardenlabs/warden-core/internal/access"
	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/controller"
	"github.com/wardenlabs/warden-core/internal/credential"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
	"github.com/wardenlabs/warden-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ControlPlane is the controller surface the API needs.
// Implemented by controller.Controller.
type ControlPlane interface {
	Status(now time.Time) controller.Status
	SetMode(mode access.Mode)
	Inject(ev access.Event) bool
}

// CredentialDirectory is the credential store surface the API needs.
// Implemented by credential.Store.
type CredentialDirectory interface {
	CheckPassword(ctx context.Context, candidate string) (credential.Role, bool, error)
	SetPassword(ctx context.Context, role credential.Role, password string) error
	ListSlots(ctx context.Context) ([]credential.FingerprintSlot, error)
	HasSlot(ctx context.Context, slot int) (bool, error)
}

// Recorder receives audit events for API-originated actions.
// Implemented by audit.Recorder.
type Recorder interface {
	Record(event audit.Event)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Security    config.SecurityConfig
	AuthPolicy  config.AuthPolicyConfig
	Logger      *logging.Logger
	Controller  ControlPlane
	Credentials CredentialDirectory
	AuditRepo   audit.Repository
	Recorder    Recorder
	Version     string
}

// Server is the HTTP API server for Warden Core.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	secCfg     config.SecurityConfig
	policy     config.AuthPolicyConfig
	logger     *logging.Logger
	ctrl       ControlPlane
	creds      CredentialDirectory
	auditRepo  audit.Repository
	recorder   Recorder
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, controller, credential store)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		policy:    deps.AuthPolicy,
		logger:    deps.Logger,
		ctrl:      deps.Controller,
		creds:     deps.Credentials,
		auditRepo: deps.AuditRepo,
		recorder:  deps.Recorder,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
