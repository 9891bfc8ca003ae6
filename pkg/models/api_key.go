package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIKey represents a credential issued to a user within a tenant.
// Only the HMAC of the secret part is stored; the plaintext token is shown
// once at creation.
type APIKey struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	PublicID     string     `db:"public_id"     json:"public_id"`
	Hash         string     `db:"hash"          json:"-"`
	OwnerUserID  int64      `db:"owner_user_id" json:"owner_user_id"`
	TenantID     string     `db:"tenant_id"     json:"tenant_id"`
	ScopesCSV    string     `db:"scopes_csv"    json:"-"`
	Name         string     `db:"name"          json:"name"`
	MetadataJSON string     `db:"metadata_json" json:"metadata_json,omitempty"`
	CreatedUTC   time.Time  `db:"created_utc"   json:"created_utc"`
	ExpiresUTC   *time.Time `db:"expires_utc"   json:"expires_utc,omitempty"`
	RevokedUTC   *time.Time `db:"revoked_utc"   json:"revoked_utc,omitempty"`
	LastUsedUTC  *time.Time `db:"last_used_utc" json:"last_used_utc,omitempty"`
}

// IsActive reports whether the key is neither revoked nor expired at now.
func (k *APIKey) IsActive(now time.Time) bool {
	if k.RevokedUTC != nil {
		return false
	}
	return k.ExpiresUTC == nil || k.ExpiresUTC.After(now)
}

// IsRevoked reports whether the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedUTC != nil
}

// ScopeList returns the key's scopes, sorted and deduplicated.
func (k *APIKey) ScopeList() []string {
	return ParseScopes(k.ScopesCSV)
}

// ScopeSet returns the key's scopes as a set.
func (k *APIKey) ScopeSet() map[string]struct{} {
	scopes := k.ScopeList()
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// HasScope reports whether scope is granted to the key.
func (k *APIKey) HasScope(scope string) bool {
	_, ok := k.ScopeSet()[scope]
	return ok
}

// ParseScopes splits a comma-separated scope list. Entries are trimmed,
// empty entries dropped and duplicates collapsed. The result is sorted.
func ParseScopes(csv string) []string {
	return NormalizeScopes(strings.Split(csv, ","))
}

// NormalizeScopes trims, deduplicates and sorts scopes.
func NormalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// JoinScopes renders scopes as the persisted comma-separated form.
func JoinScopes(scopes []string) string {
	return strings.Join(NormalizeScopes(scopes), ",")
}
