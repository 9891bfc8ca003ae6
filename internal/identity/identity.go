// Package identity builds the claim set attached to an authenticated caller.
//
// Both the token endpoint and the request authentication middleware turn a
// validated API key into an Identity through BuildIdentity, so key-derived
// tokens and direct key requests carry the same claims.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// Claim names.
const (
	ClaimSubject    = "sub"
	ClaimAPIKeyID   = "api_key_id"
	ClaimName       = "name"
	ClaimEmail      = "email"
	ClaimUserID     = "user_id"
	ClaimTenantID   = "tenant_id"
	ClaimScope      = "scope"
	ClaimAuthOrigin = "auth_origin"
)

// Values of the auth_origin claim.
const (
	OriginAPIKey      = "api_key"
	OriginInteractive = "interactive"
)

// SubjectPrefix namespaces key-derived subjects apart from human users.
const SubjectPrefix = "spn:ak_"

var ErrInvalidClaims = errors.New("identity: invalid claims")

// Identity is the authenticated principal of a request or token.
type Identity struct {
	Subject    string   `json:"sub"`
	APIKeyID   string   `json:"api_key_id,omitempty"`
	Username   string   `json:"name"`
	Email      string   `json:"email"`
	UserID     int64    `json:"user_id"`
	TenantID   string   `json:"tenant_id"`
	Scopes     []string `json:"scope"`
	AuthOrigin string   `json:"auth_origin"`
}

// BuildIdentity returns the identity for a validated key owned by owner,
// restricted to granted scopes.
func BuildIdentity(key *models.APIKey, owner *models.User, granted []string) *Identity {
	return &Identity{
		Subject:    SubjectPrefix + key.PublicID,
		APIKeyID:   key.PublicID,
		Username:   owner.Username,
		Email:      owner.Email,
		UserID:     owner.ID,
		TenantID:   key.TenantID,
		Scopes:     models.NormalizeScopes(granted),
		AuthOrigin: OriginAPIKey,
	}
}

// HasScope reports whether scope was granted.
func (id *Identity) HasScope(scope string) bool {
	return slices.Contains(id.Scopes, scope)
}

// IsAPIKeyOrigin reports whether the identity was derived from an API key
// rather than an interactive login.
func (id *Identity) IsAPIKeyOrigin() bool {
	return id.AuthOrigin == OriginAPIKey
}

// Claims renders the identity as JWT claims. user_id is a string so large
// ids survive JSON number handling.
func (id *Identity) Claims() jwt.MapClaims {
	scopes := make([]any, len(id.Scopes))
	for i, s := range id.Scopes {
		scopes[i] = s
	}
	c := jwt.MapClaims{
		ClaimSubject:    id.Subject,
		ClaimName:       id.Username,
		ClaimEmail:      id.Email,
		ClaimUserID:     strconv.FormatInt(id.UserID, 10),
		ClaimTenantID:   id.TenantID,
		ClaimScope:      scopes,
		ClaimAuthOrigin: id.AuthOrigin,
	}
	if id.APIKeyID != "" {
		c[ClaimAPIKeyID] = id.APIKeyID
	}
	return c
}

// FromClaims is the inverse of Claims.
func FromClaims(c jwt.MapClaims) (*Identity, error) {
	id := &Identity{}
	var err error
	if id.Subject, err = c.GetSubject(); err != nil || id.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	id.APIKeyID, _ = c[ClaimAPIKeyID].(string)
	id.Username, _ = c[ClaimName].(string)
	id.Email, _ = c[ClaimEmail].(string)
	id.TenantID, _ = c[ClaimTenantID].(string)
	id.AuthOrigin, _ = c[ClaimAuthOrigin].(string)
	if id.AuthOrigin == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidClaims, ClaimAuthOrigin)
	}

	if raw, ok := c[ClaimUserID].(string); ok {
		if id.UserID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidClaims, ClaimUserID, err)
		}
	}

	switch v := c[ClaimScope].(type) {
	case []any:
		for _, s := range v {
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string scope", ErrInvalidClaims)
			}
			id.Scopes = append(id.Scopes, str)
		}
	case []string:
		id.Scopes = append(id.Scopes, v...)
	case nil:
	default:
		return nil, fmt.Errorf("%w: scope has type %T", ErrInvalidClaims, v)
	}
	id.Scopes = models.NormalizeScopes(id.Scopes)
	return id, nil
}

type ctxKey struct{}

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
