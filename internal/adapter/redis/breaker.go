package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/sony/gobreaker"
)

// FallbackDeduper guards a shared deduper with a circuit breaker. Every
// record also lands in the local fallback, so when Redis fails or the
// breaker is open, lookups answer from the codes this process sent itself.
type FallbackDeduper struct {
	cb       *gobreaker.CircuitBreaker
	primary  domain.Deduper
	fallback domain.Deduper
}

var _ domain.Deduper = (*FallbackDeduper)(nil)

// NewFallbackDeduper trips after 5 requests with at least 60% failures and
// probes Redis again after 30s.
func NewFallbackDeduper(primary, fallback domain.Deduper) *FallbackDeduper {
	return newFallbackDeduper(primary, fallback, gobreaker.Settings{
		Name:        "redis-dedupe",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}

func newFallbackDeduper(primary, fallback domain.Deduper, settings gobreaker.Settings) *FallbackDeduper {
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
	}
	return &FallbackDeduper{
		cb:       gobreaker.NewCircuitBreaker(settings),
		primary:  primary,
		fallback: fallback,
	}
}

func (d *FallbackDeduper) Seen(ctx context.Context, code string) (bool, error) {
	res, err := d.cb.Execute(func() (any, error) {
		return d.primary.Seen(ctx, code)
	})
	if err != nil {
		slog.Debug("Shared dedupe unavailable, using local window", "code", code, "error", err)
		return d.fallback.Seen(ctx, code)
	}
	return res.(bool), nil
}

func (d *FallbackDeduper) Record(ctx context.Context, code string) error {
	if err := d.fallback.Record(ctx, code); err != nil {
		return err
	}

	_, err := d.cb.Execute(func() (any, error) {
		return nil, d.primary.Record(ctx, code)
	})
	if err != nil {
		slog.Debug("Shared dedupe unavailable, recorded locally only", "code", code, "error", err)
	}
	return nil
}

// State reports the breaker state.
func (d *FallbackDeduper) State() gobreaker.State {
	return d.cb.State()
}
