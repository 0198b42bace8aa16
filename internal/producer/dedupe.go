package producer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/domain"
)

var _ domain.Deduper = (*MemoryDeduper)(nil)

// MemoryDeduper remembers sent codes in process memory for window.
type MemoryDeduper struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	sent   map[string]time.Time
}

func NewMemoryDeduper(window time.Duration, clock clockwork.Clock) *MemoryDeduper {
	return &MemoryDeduper{
		clock:  clock,
		window: window,
		sent:   make(map[string]time.Time),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, code string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()
	_, ok := d.sent[code]
	return ok, nil
}

func (d *MemoryDeduper) Record(_ context.Context, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent[code] = d.clock.Now()
	return nil
}

// Len returns the number of codes still inside the window.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()
	return len(d.sent)
}

func (d *MemoryDeduper) pruneLocked() {
	now := d.clock.Now()
	for code, at := range d.sent {
		if now.Sub(at) >= d.window {
			delete(d.sent, code)
		}
	}
}
