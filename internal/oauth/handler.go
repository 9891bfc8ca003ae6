package oauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/insightdesk/internal/metric"
)

const maxTokenRequestBytes = 16 << 10

// TokenResponse is the successful token endpoint body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// TokenHandler serves POST /connect/token.
type TokenHandler struct {
	grants  *GrantValidator
	issuer  *Issuer
	clients *Clients
}

// NewTokenHandler returns the token endpoint handler.
func NewTokenHandler(g *GrantValidator, i *Issuer, c *Clients) *TokenHandler {
	return &TokenHandler{grants: g, issuer: i, clients: c}
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}

	grantType := r.PostForm.Get("grant_type")
	clientID, ok := h.clients.Authenticate(r)
	if !ok {
		metric.TokenRequests.WithLabelValues(grantType, metric.ResultRejected).Inc()
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		writeError(w, http.StatusUnauthorized, CodeInvalidClient)
		return
	}

	switch grantType {
	case GrantTypeAPIKey:
		h.apiKeyGrant(w, r, clientID)
	case "":
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
	default:
		metric.TokenRequests.WithLabelValues("other", metric.ResultRejected).Inc()
		writeError(w, http.StatusBadRequest, CodeUnsupportedGrantType)
	}
}

func (h *TokenHandler) apiKeyGrant(w http.ResponseWriter, r *http.Request, clientID string) {
	id, err := h.grants.ValidateAPIKeyGrant(r.Context(),
		r.PostForm.Get("api_key"), r.PostForm.Get("scope"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidScope):
			metric.TokenRequests.WithLabelValues(GrantTypeAPIKey, metric.ResultRejected).Inc()
			writeError(w, http.StatusBadRequest, CodeInvalidScope)
		case errors.Is(err, ErrInvalidGrant):
			metric.TokenRequests.WithLabelValues(GrantTypeAPIKey, metric.ResultRejected).Inc()
			writeError(w, http.StatusBadRequest, CodeInvalidGrant)
		default:
			metric.TokenRequests.WithLabelValues(GrantTypeAPIKey, metric.ResultError).Inc()
			slog.Error("api_key grant failed", "error", err)
			writeError(w, http.StatusInternalServerError, CodeServerError)
		}
		return
	}

	token, err := h.issuer.Issue(id)
	if err != nil {
		metric.TokenRequests.WithLabelValues(GrantTypeAPIKey, metric.ResultError).Inc()
		slog.Error("issue access token failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeServerError)
		return
	}

	metric.TokenRequests.WithLabelValues(GrantTypeAPIKey, metric.ResultIssued).Inc()
	slog.Info("access token issued",
		"grant_type", GrantTypeAPIKey,
		"client_id", clientID,
		"sub", id.Subject,
		"tenant_id", id.TenantID,
	)
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.issuer.Lifetime().Seconds()),
		Scope:       strings.Join(id.Scopes, " "),
	})
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
