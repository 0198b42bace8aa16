package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	hub := &mockHub{stats: domain.RelayStats{ProducerConnected: true, ProducerName: "m1", Consumers: 3, Connections: 4}}
	srv, clock := newTestServer(t, hub)
	clock.Advance(90 * time.Second)

	err := srv.handleHealth(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"status":"ok","producerConnected":true,"consumerCount":3,"uptimeSeconds":90}`,
		rec.Body.String())
}

func TestHandleHealth_NoProducer(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	srv, _ := newTestServer(t, &mockHub{})

	require.NoError(t, srv.handleHealth(c))
	assert.JSONEq(t,
		`{"status":"ok","producerConnected":false,"consumerCount":0,"uptimeSeconds":0}`,
		rec.Body.String())
}

func TestHealthRoute_HubStopped(t *testing.T) {
	srv, _ := newTestServer(t, &mockHub{statsErr: domain.ErrHubStopped})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"unavailable"`)
}

func TestRootRoute_PlainTextSummary(t *testing.T) {
	hub := &mockHub{stats: domain.RelayStats{ProducerConnected: true, ProducerName: "m1", Consumers: 2}}
	srv, _ := newTestServer(t, hub)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
	assert.Contains(t, rec.Body.String(), "Producer: m1 (connected)")
	assert.Contains(t, rec.Body.String(), "Consumers: 2")
}

func TestVersionRoute(t *testing.T) {
	srv, _ := newTestServer(t, &mockHub{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"binary":"relay"`)
	assert.Contains(t, rec.Body.String(), `"go_version"`)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer(testConfig(), &mockHub{}, reg, clockwork.NewFakeClock())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coderelay_http_requests_total{method="GET",route="/version",status_code="200"} 1`)
}

func TestMetricsRoute_AbsentWithoutRegistry(t *testing.T) {
	srv, _ := newTestServer(t, &mockHub{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
