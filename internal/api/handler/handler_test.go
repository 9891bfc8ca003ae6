package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/insightdesk/internal/api/handler"
	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── shared helpers ─────────────────────────────────────────────────────────

func interactive() *identity.Identity {
	return &identity.Identity{
		Subject:    "user:42",
		Username:   "alice",
		Email:      "alice@acme.test",
		UserID:     42,
		TenantID:   "acme",
		Scopes:     []string{"read", "write"},
		AuthOrigin: identity.OriginInteractive,
	}
}

func withIdentity(r *http.Request, id *identity.Identity) *http.Request {
	return r.WithContext(identity.NewContext(r.Context(), id))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func decodeErrCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

// ─── mock pinger ────────────────────────────────────────────────────────────

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealth_AllOK(t *testing.T) {
	h := handler.Health(pinger{}, pinger{})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealth_DatabaseDegraded(t *testing.T) {
	h := handler.Health(pinger{err: errors.New("connection refused")}, pinger{})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DEGRADED", decodeErrCode(t, w))
}

func TestHealth_CacheDegraded(t *testing.T) {
	h := handler.Health(pinger{}, pinger{err: errors.New("redis down")})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── me handler tests ───────────────────────────────────────────────────────

func TestMe_EchoesIdentity(t *testing.T) {
	id := &identity.Identity{
		Subject:    "spn:ak_ABCDEFGHIJKLMNOP",
		APIKeyID:   "ABCDEFGHIJKLMNOP",
		Username:   "alice",
		UserID:     42,
		TenantID:   "acme",
		Scopes:     []string{"read"},
		AuthOrigin: identity.OriginAPIKey,
	}
	r := withIdentity(httptest.NewRequest("GET", "/api/v1/me", nil), id)
	w := httptest.NewRecorder()
	handler.Me(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "spn:ak_ABCDEFGHIJKLMNOP", data["sub"])
	assert.Equal(t, "ABCDEFGHIJKLMNOP", data["api_key_id"])
	assert.Equal(t, "acme", data["tenant_id"])
	assert.Equal(t, "api_key", data["auth_origin"])
	assert.Equal(t, []any{"read"}, data["scope"])
}

func TestMe_NoIdentity(t *testing.T) {
	w := httptest.NewRecorder()
	handler.Me(w, httptest.NewRequest("GET", "/api/v1/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
