package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/api/handlers"
	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/config"
	"github.com/agentoven/boardroom/internal/consult"
	"github.com/agentoven/boardroom/internal/gate"
	"github.com/agentoven/boardroom/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, keys ...string) http.Handler {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.APIKeys = keys
	cfg.Completion.Provider = "mock"

	svc, err := completion.NewService(cfg.Completion)
	require.NoError(t, err)
	reg := advisors.NewDefaultRegistry()
	g := gate.New(cfg.Gate.TokensPerMinute, cfg.Gate.MaxParallelRequests)
	orch := consult.New(svc, g, reg, consult.Options{
		Retry:       retry.Policy{MaxRetries: 0, InitialDelay: time.Millisecond, BackoffFactor: 2},
		CallTimeout: time.Second,
	})
	return NewRouter(cfg, handlers.New(orch, reg, g))
}

func TestRouter_HealthAndVersion(t *testing.T) {
	r := newTestRouter(t, "secret")

	for path, key := range map[string]string{"/health": "status", "/version": "version"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body[key])
		assert.Equal(t, "boardroom", body["service"])
	}
}

func TestRouter_AuthGuardsAPI(t *testing.T) {
	r := newTestRouter(t, "secret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/advisors", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/advisors", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRouter_ConsultStreamsThroughMiddleware(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consult", strings.NewReader(`{"query": "Should we expand to Europe?"}`))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, w.Flushed)
	assert.Contains(t, w.Body.String(), `data: {"type":"final"`)
}
