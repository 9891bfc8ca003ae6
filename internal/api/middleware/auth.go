package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/kiranshivaraju/insightdesk/internal/api/response"
	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"github.com/kiranshivaraju/insightdesk/internal/metric"
	"github.com/kiranshivaraju/insightdesk/internal/users"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// Authentication schemes, also used as metric labels.
const (
	SchemeAPIKey = "api_key"
	SchemeBearer = "bearer"
)

var errUnauthenticated = errors.New("unauthenticated")

// KeyValidator validates raw API keys.
type KeyValidator interface {
	Validate(ctx context.Context, token string, updateLastUsed bool) (*models.APIKey, error)
}

// TokenParser verifies bearer access tokens.
type TokenParser interface {
	Parse(token string) (*identity.Identity, error)
}

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	keys   KeyValidator
	users  users.Directory
	tokens TokenParser
}

// NewAuth creates a new Auth middleware.
func NewAuth(keys KeyValidator, dir users.Directory, tokens TokenParser) *Auth {
	return &Auth{keys: keys, users: dir, tokens: tokens}
}

// Authenticate resolves the caller's identity from the Authorization header.
//
// A raw header value starting with "ak_" (any case, no "Bearer" prefix) is an
// API key and is validated as a whole, exactly as the api_key grant would;
// the resulting identity lives only for this request. Anything else must be "Bearer <access token>". The two
// schemes never overlap.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))

		var (
			id     *identity.Identity
			err    error
			scheme string
		)
		switch {
		case apikey.HasTokenPrefix(header):
			scheme = SchemeAPIKey
			id, err = a.authenticateAPIKey(r.Context(), header)
		case header != "":
			scheme = SchemeBearer
			id, err = a.authenticateBearer(header)
		default:
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if err != nil {
			metric.AuthenticatedRequests.WithLabelValues(scheme, metric.ResultRejected).Inc()
			if !errors.Is(err, errUnauthenticated) {
				slog.Error("authentication failed", "scheme", scheme, "error", err, "path", r.URL.Path)
			}
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid credentials", nil)
			return
		}

		metric.AuthenticatedRequests.WithLabelValues(scheme, metric.ResultValid).Inc()
		next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), id)))
	})
}

// authenticateAPIKey never panics: any failure, including a recovered
// panic, is an authentication error.
func (a *Auth) authenticateAPIKey(ctx context.Context, header string) (id *identity.Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			id, err = nil, fmt.Errorf("panic during api key authentication: %v\n%s", rec, debug.Stack())
		}
	}()

	if strings.TrimSpace(header[len(apikey.TokenPrefix):]) == "" {
		slog.Debug("api key header rejected: empty key")
		return nil, errUnauthenticated
	}

	key, err := a.keys.Validate(ctx, header, true)
	if errors.Is(err, apikey.ErrInvalidKey) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	owner, err := a.users.GetUserByID(ctx, key.OwnerUserID)
	if users.IsNotFound(err) {
		slog.Warn("api key owner not found", "public_id", key.PublicID, "owner_user_id", key.OwnerUserID)
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	return identity.BuildIdentity(key, owner, key.ScopeList()), nil
}

func (a *Auth) authenticateBearer(header string) (*identity.Identity, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" || apikey.HasTokenPrefix(token) {
		return nil, errUnauthenticated
	}
	id, err := a.tokens.Parse(token)
	if err != nil {
		slog.Debug("bearer token rejected", "error", err)
		return nil, errUnauthenticated
	}
	return id, nil
}

// RequireScope returns middleware that checks whether the authenticated
// identity has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromContext(r.Context())
			if ok && id.HasScope(scope) {
				next.ServeHTTP(w, r)
				return
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
		})
	}
}
