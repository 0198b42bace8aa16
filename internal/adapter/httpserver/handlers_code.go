package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/coderelay/internal/domain"
	apperrors "github.com/pscheid92/coderelay/internal/platform/errors"
	"golang.org/x/time/rate"
)

const sendCodeLimiterExpiry = 5 * time.Minute

type sendCodeRequest struct {
	Code string `json:"code"`
}

type sendCodeResponse struct {
	Status    string `json:"status"`
	Consumers int    `json:"consumers"`
}

// handleSendCode fans a code out exactly like a new_code from the producer.
// It exists for deployments without a persistent producer connection.
func (s *Server) handleSendCode(c echo.Context) error {
	var req sendCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("request body must be a JSON object with a string code")
	}
	if strings.TrimSpace(req.Code) == "" {
		return apperrors.ValidationError("code is required")
	}

	ctx := c.Request().Context()
	delivered, err := s.hub.Publish(ctx, req.Code)
	switch {
	case errors.Is(err, domain.ErrDraining), errors.Is(err, domain.ErrHubStopped):
		return apperrors.UnavailableError("relay is shutting down", err)
	case err != nil:
		return apperrors.InternalError("failed to broadcast code", err).WithField("code", req.Code)
	}

	slog.InfoContext(ctx, "Code accepted over HTTP", "code", req.Code, "consumers", delivered)
	if err := c.JSON(http.StatusAccepted, sendCodeResponse{Status: "accepted", Consumers: delivered}); err != nil {
		return fmt.Errorf("failed to write send-code response: %w", err)
	}
	return nil
}

// sendCodeRateLimiter throttles /send-code per client IP.
func sendCodeRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: sendCodeLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.WarnContext(c.Request().Context(), "send-code rate limit exceeded", "client_ip", identifier)
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "rate limit exceeded",
				Type:  apperrors.TypeUnavailable,
			})
		},
	})
}
