package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/infrastructure/config"
	"github.com/nerrad567/posebridge/internal/infrastructure/logging"
	"github.com/nerrad567/posebridge/internal/journal"
	"github.com/nerrad567/posebridge/internal/slot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the controller surface the API reads and drives. Its methods are
// only ever invoked from inside Dispatcher.Call.
type Bridge interface {
	State() bridge.ConnectionState
	IsInitialized() bool
	MaxSlotCount() int
	Definitions() []slot.Definition
	SessionID() string
	Stats() bridge.Stats
	Connect(defs []slot.Definition)
	Disconnect()
}

// Dispatcher runs a function on the bridge goroutine and waits for it.
type Dispatcher interface {
	Call(ctx context.Context, fn func()) error
}

// JournalReader lists recorded connection transitions.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
	ListSession(ctx context.Context, sessionID string, limit int) ([]journal.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Bridge     Bridge
	Dispatcher Dispatcher
	Journal    JournalReader     // Optional; nil disables GET /journal
	Slots      []slot.Definition // Used by POST /connect when the body is empty
	Hub        *Hub              // If set, the server uses this hub instead of creating its own
	Version    string
}

// Server is the HTTP API server for posebridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	bridge     Bridge
	dispatcher Dispatcher
	journal    JournalReader
	slots      []slot.Definition
	version    string
	server     *http.Server
	listener   net.Listener
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bridge, dispatcher)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      withWSDefaults(deps.WS),
		logger:     deps.Logger,
		bridge:     deps.Bridge,
		dispatcher: deps.Dispatcher,
		journal:    deps.Journal,
		slots:      deps.Slots,
		version:    deps.Version,
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub so the host can broadcast connection events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Binding happens before Start returns, so a port conflict is reported here
// rather than logged later. The hub runs until Close or until ctx is
// cancelled.
//
// Parameters:
//   - ctx: Parent context for the hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
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

// HealthCheck verifies the API server has been started.
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
