package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahidhasan98/whatsapp-bridge/internal/broadcast"
	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/handlers"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
)

type idleSession struct {
	connects int
}

func (s *idleSession) Connect(ctx context.Context) error {
	s.connects++
	return nil
}
func (s *idleSession) Disconnect(ctx context.Context, reason string) error { return nil }
func (s *idleSession) Stop(ctx context.Context) error                      { return nil }
func (s *idleSession) Snapshot() session.Snapshot                          { return session.Snapshot{} }
func (s *idleSession) Join(ctx context.Context, register func()) (*models.ReadyEvent, error) {
	register()
	return nil, nil
}

type noCommands struct{}

func (noCommands) Handle(ctx context.Context, connID string, raw []byte) {}

func testConfig(keys ...string) *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{RateLimit: 1000},
		WebSocket: config.WebSocketConfig{AllowedOrigins: []string{"*"}, ReadLimit: 1 << 20, CommandRate: 10, CommandBurst: 10},
		Security:  config.SecurityConfig{APIKeys: keys},
	}
}

func newTestServer(cfg *config.Config, s handlers.Session) http.Handler {
	log := logger.Nop()
	h := handlers.New(s, broadcast.New(log, time.Second), noCommands{}, cfg.WebSocket, log)
	return New(cfg, h, log).Routes()
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Probes(t *testing.T) {
	h := newTestServer(testConfig(), &idleSession{})

	rec := serve(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var status models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.WhatsAppReady)
	assert.Zero(t, status.ConnectedClients)
	assert.NotZero(t, status.Timestamp)

	rec = serve(h, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_OperatorRoutesNeedKeys(t *testing.T) {
	s := &idleSession{}
	h := newTestServer(testConfig(), s)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/session/start", nil).Code)

	h = newTestServer(testConfig("operator-secret"), s)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/session/start", nil).Code)

	rec := serve(h, http.MethodPost, "/session/start", http.Header{"X-Api-Key": {"operator-secret"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, s.connects)
}
