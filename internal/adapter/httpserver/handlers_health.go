package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/coderelay/internal/platform/errors"
	"github.com/pscheid92/coderelay/internal/platform/version"
)

const statsTimeout = 2 * time.Second

type healthResponse struct {
	Status            string  `json:"status"`
	ProducerConnected bool    `json:"producerConnected"`
	ConsumerCount     int     `json:"consumerCount"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), statsTimeout)
	defer cancel()

	stats, err := s.hub.Stats(ctx)
	if err != nil {
		return apperrors.UnavailableError("relay is not accepting connections", err)
	}

	response := healthResponse{
		Status:            "ok",
		ProducerConnected: stats.ProducerConnected,
		ConsumerCount:     stats.Consumers,
		UptimeSeconds:     s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get("relay")); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
