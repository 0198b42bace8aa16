package httpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/platform/config"
)

type mockHub struct {
	mu         sync.Mutex
	stats      domain.RelayStats
	statsErr   error
	published  []string
	publishN   int
	publishErr error
}

func (m *mockHub) Serve(_ context.Context, conn *websocket.Conn) {
	_ = conn.Close()
}

func (m *mockHub) Publish(_ context.Context, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return 0, m.publishErr
	}
	m.published = append(m.published, code)
	return m.publishN, nil
}

func (m *mockHub) Stats(context.Context) (domain.RelayStats, error) {
	return m.stats, m.statsErr
}

func (m *mockHub) publishedCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "test",
		Port:                "0",
		MaxConnections:      100,
		HTTPSendCodeEnabled: true,
		SendCodeRate:        100,
		SendCodeBurst:       100,
	}
}

type serverOption func(*config.Config)

func withConfig(fn func(*config.Config)) serverOption {
	return serverOption(fn)
}

func newTestServer(t *testing.T, hub relayHub, opts ...serverOption) (*Server, *clockwork.FakeClock) {
	t.Helper()
	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	clock := clockwork.NewFakeClock()
	return NewServer(cfg, hub, nil, clock), clock
}
