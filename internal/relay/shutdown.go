package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Drainer closes every relay connection, bounded by ctx.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Listener is a network listener closed after the connections are drained.
type Listener interface {
	Shutdown(ctx context.Context) error
}

// Coordinator runs the ordered shutdown: drain connections, then close
// listeners. A watchdog calls exit(1) if the whole sequence overruns timeout.
type Coordinator struct {
	hub       Drainer
	listeners []Listener
	timeout   time.Duration
	clock     clockwork.Clock
	exit      func(int)
}

func NewCoordinator(hub Drainer, timeout time.Duration, clock clockwork.Clock, exit func(int), listeners ...Listener) *Coordinator {
	return &Coordinator{
		hub:       hub,
		listeners: listeners,
		timeout:   timeout,
		clock:     clock,
		exit:      exit,
	}
}

// Run performs the shutdown and returns the process exit code: 0 when
// everything closed in time, 1 otherwise.
func (c *Coordinator) Run() int {
	start := c.clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchdog := c.clock.AfterFunc(c.timeout, func() {
		slog.Error("Shutdown watchdog expired, forcing exit", "timeout", c.timeout)
		cancel()
		c.exit(1)
	})
	defer watchdog.Stop()

	code := 0
	if err := c.hub.Drain(ctx); err != nil {
		slog.Error("Relay drain failed", "error", err)
		code = 1
	}

	for _, l := range c.listeners {
		if err := l.Shutdown(ctx); err != nil {
			slog.Error("Listener shutdown failed", "error", err)
			code = 1
		}
	}

	slog.Info("Shutdown complete", "duration", c.clock.Since(start), "exit_code", code)
	return code
}
