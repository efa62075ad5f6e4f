package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
)

const testOrigin = "http://allowed.test"

type testEnv struct {
	ts     *httptest.Server
	hub    *core.Hub
	log    *memory.Log
	issuer *auth.Issuer
	cfg    config.Config
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.Chat.LongPollTimeout = 200 * time.Millisecond
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.Identity.Secret = "test-secret"
	for _, m := range mutate {
		m(&cfg)
	}

	logger := zerolog.Nop()
	issuer, err := auth.NewIssuer(cfg.Identity.Secret, cfg.Identity.TTL)
	require.NoError(t, err)

	log := memory.New()
	hub := core.NewHub(log, &logger)
	origins := NewOriginPolicy(cfg.AllowedOrigins, &logger)
	server := NewServer(hub, issuer, origins, cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	// runs before ts.Close so parked polls and sockets are released first
	t.Cleanup(hub.Close)

	return &testEnv{ts: ts, hub: hub, log: log, issuer: issuer, cfg: cfg}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// identity fetches a fresh identity cookie.
func (e *testEnv) identity(t *testing.T) *http.Cookie {
	t.Helper()

	resp, err := e.ts.Client().Post(e.ts.URL+"/identity", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == e.cfg.Identity.CookieName {
			return c
		}
	}
	t.Fatal("identity cookie not set")
	return nil
}

func (e *testEnv) post(t *testing.T, cookie *http.Cookie, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/chat", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (e *testEnv) waitWaiters(t *testing.T, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		st, err := e.hub.Stats(context.Background())
		return err == nil && st.Waiters == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d waiters", n)
}

func (e *testEnv) waitSockets(t *testing.T, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		st, err := e.hub.Stats(context.Background())
		return err == nil && st.Sockets == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d sockets", n)
}
