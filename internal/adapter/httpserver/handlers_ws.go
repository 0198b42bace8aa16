package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/coderelay/internal/platform/errors"
)

// handleRoot upgrades WebSocket requests and otherwise prints a short
// plain-text summary of the relay.
func (s *Server) handleRoot(c echo.Context) error {
	if c.IsWebSocket() {
		return s.handleWebSocket(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), statsTimeout)
	defer cancel()

	stats, err := s.hub.Stats(ctx)
	if err != nil {
		return apperrors.UnavailableError("relay is not accepting connections", err)
	}

	var b strings.Builder
	b.WriteString("Code relay is running.\n")
	if stats.ProducerConnected {
		fmt.Fprintf(&b, "Producer: %s (connected)\n", stats.ProducerName)
	} else {
		b.WriteString("Producer: not connected\n")
	}
	fmt.Fprintf(&b, "Consumers: %d\n", stats.Consumers)
	fmt.Fprintf(&b, "Uptime: %s\n", s.clock.Since(s.startTime).Truncate(time.Second))

	if err := c.String(http.StatusOK, b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// handleWebSocket upgrades the request and hands the connection to the hub
// for as long as it stays open.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.connections.Acquire() {
		return apperrors.UnavailableError("connection limit reached", nil).
			WithField("max_connections", s.connections.Max())
	}
	defer s.connections.Release()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	s.hub.Serve(c.Request().Context(), conn)
	return nil
}
