package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/coderelay/internal/adapter/metrics"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/platform/config"
)

type relayHub interface {
	Serve(ctx context.Context, conn *websocket.Conn)
	Publish(ctx context.Context, code string) (int, error)
	Stats(ctx context.Context) (domain.RelayStats, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	hub    relayHub
	clock  clockwork.Clock

	upgrader    websocket.Upgrader
	connections *ConnectionLimiter
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	startTime   time.Time
}

// NewServer builds the HTTP surface of the relay. registry may be nil, in
// which case /metrics is not served.
func NewServer(cfg *config.Config, hub relayHub, registry *prometheus.Registry, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		hub:    hub,
		clock:  clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins(), cfg.IsDevelopment()),
		},
		connections: NewConnectionLimiter(int64(cfg.MaxConnections)),
		registry:    registry,
		startTime:   clock.Now(),
	}
	if registry != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes the listener. Upgraded WebSocket connections are not
// tracked by the HTTP server and must be drained by the hub first.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
