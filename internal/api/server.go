package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/audit"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Runner executes functions on the goroutine that owns the controller.
// Satisfied by *compositor.Runner.
type Runner interface {
	Do(ctx context.Context, fn func(*content.Controller) error) error
}

// Connectivity reports whether a broker link is up. Satisfied by *mqtt.Client.
type Connectivity interface {
	IsConnected() bool
}

// DBStats exposes connection pool statistics. Satisfied by *database.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Runner   Runner
	History  history.Repository // optional: history endpoint returns 503 without it
	Audit    audit.Repository   // optional: control requests go unaudited without it
	MQTT     Connectivity       // optional: reported by /metrics
	DB       DBStats            // optional: reported by /metrics
	Hub      *Hub               // if nil the server creates and runs its own

	// DefaultReadyTimeout applies to ready requests without a timeout (ms).
	DefaultReadyTimeout uint64
	Version             string
}

// Server is the HTTP API server for the compositor.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	runner       Runner
	history      history.Repository
	audit        audit.Repository
	auditCh      chan *audit.AuditLog
	mqtt         Connectivity
	db           DBStats
	readyTimeout uint64
	version      string
	startTime    time.Time
	server       *http.Server
	hub          *Hub
	tickets      *ticketStore
	cancel       context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, runner) and optional outputs
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("compositor runner is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		runner:       deps.Runner,
		history:      deps.History,
		audit:        deps.Audit,
		mqtt:         deps.MQTT,
		db:           deps.DB,
		readyTimeout: deps.DefaultReadyTimeout,
		version:      deps.Version,
		startTime:    time.Now(),
		hub:          deps.Hub,
		tickets:      newTicketStore(),
	}
	if s.audit != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected), the ticket cleanup
// loop, the audit writer and the HTTP listener in background goroutines.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
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

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}
