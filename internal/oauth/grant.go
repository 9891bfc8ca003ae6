package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"github.com/kiranshivaraju/insightdesk/internal/users"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// GrantTypeAPIKey is the grant_type value of the extension grant.
const GrantTypeAPIKey = "api_key"

// KeyValidator validates presented API keys.
type KeyValidator interface {
	Validate(ctx context.Context, token string, updateLastUsed bool) (*models.APIKey, error)
}

// GrantValidator decides api_key grant requests.
type GrantValidator struct {
	keys  KeyValidator
	users users.Directory
	log   *slog.Logger
}

// NewGrantValidator returns a GrantValidator.
func NewGrantValidator(keys KeyValidator, dir users.Directory, log *slog.Logger) *GrantValidator {
	if log == nil {
		log = slog.Default()
	}
	return &GrantValidator{keys: keys, users: dir, log: log}
}

// ValidateAPIKeyGrant checks rawKey and the space-delimited requestedScope.
// An empty scope request grants every scope of the key; a request naming
// any scope the key lacks is rejected whole with ErrInvalidScope. All
// credential problems are ErrInvalidGrant.
func (v *GrantValidator) ValidateAPIKeyGrant(ctx context.Context, rawKey, requestedScope string) (*identity.Identity, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		v.log.Info("api_key grant rejected: missing api key")
		return nil, ErrInvalidGrant
	}

	key, err := v.keys.Validate(ctx, rawKey, true)
	if errors.Is(err, apikey.ErrInvalidKey) {
		v.log.Info("api_key grant rejected: invalid api key")
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("validate api key: %w", err)
	}

	granted, err := grantScopes(key, requestedScope)
	if err != nil {
		v.log.Info("api_key grant rejected: scope not allowed",
			"public_id", key.PublicID, "requested", requestedScope)
		return nil, err
	}

	owner, err := v.users.GetUserByID(ctx, key.OwnerUserID)
	if users.IsNotFound(err) {
		v.log.Warn("api_key grant rejected: owner not found",
			"public_id", key.PublicID, "owner_user_id", key.OwnerUserID)
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("resolve key owner: %w", err)
	}

	return identity.BuildIdentity(key, owner, granted), nil
}

func grantScopes(key *models.APIKey, requested string) ([]string, error) {
	allowed := key.ScopeSet()
	fields := strings.Fields(requested)
	if len(fields) == 0 {
		return key.ScopeList(), nil
	}
	for _, s := range fields {
		if _, ok := allowed[s]; !ok {
			return nil, ErrInvalidScope
		}
	}
	return models.NormalizeScopes(fields), nil
}
