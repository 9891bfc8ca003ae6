package apikey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/insightdesk/internal/metric"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// ErrInvalidKey is returned by Validate for every rejected token. Malformed,
// unknown, revoked, expired and mismatching keys are indistinguishable.
var ErrInvalidKey = errors.New("apikey: invalid api key")

// publicIDAttempts bounds retries on a public id collision.
const publicIDAttempts = 3

// Store is the persistence the Repository needs.
type Store interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPublicID(ctx context.Context, publicID string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAPIKey(ctx context.Context, publicID string, ownerUserID int64, tenantID string, at time.Time) (bool, error)
	ListAPIKeys(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
}

// Repository issues, validates and revokes API keys.
type Repository struct {
	store      Store
	secret     string
	secretSize int
	now        func() time.Time
	log        *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithSecretSize sets the number of random bytes in newly issued secrets.
func WithSecretSize(n int) Option {
	return func(r *Repository) { r.secretSize = n }
}

// NewRepository returns a Repository hashing with serverSecret. The secret
// is never mutated or logged.
func NewRepository(s Store, serverSecret string, opts ...Option) *Repository {
	r := &Repository{
		store:      s,
		secret:     serverSecret,
		secretSize: DefaultSecretSize,
		now:        func() time.Time { return time.Now().UTC() },
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateParams describes a key to issue.
type CreateParams struct {
	OwnerUserID  int64
	TenantID     string
	Scopes       []string
	Lifetime     *time.Duration
	Name         string
	MetadataJSON string
}

// Issued is the result of Create. Token is the only copy of the plaintext
// key.
type Issued struct {
	Token string
	Key   *models.APIKey
}

// Create issues a new key. Persistence errors are returned as is and no
// token is handed out in that case.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Issued, error) {
	secretPart, err := GenerateSecretPart(r.secretSize)
	if err != nil {
		return nil, err
	}

	now := r.now()
	key := &models.APIKey{
		OwnerUserID:  p.OwnerUserID,
		TenantID:     p.TenantID,
		ScopesCSV:    models.JoinScopes(p.Scopes),
		Name:         p.Name,
		MetadataJSON: p.MetadataJSON,
		CreatedUTC:   now,
	}
	if p.Lifetime != nil {
		expires := now.Add(*p.Lifetime)
		key.ExpiresUTC = &expires
	}

	for attempt := 1; ; attempt++ {
		publicID, err := GeneratePublicID()
		if err != nil {
			return nil, err
		}
		key.ID = uuid.New()
		key.PublicID = publicID
		key.Hash = ComputeHash(r.secret, publicID, secretPart)

		err = r.store.CreateAPIKey(ctx, key)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateKey) || attempt == publicIDAttempts {
			return nil, fmt.Errorf("create api key: %w", err)
		}
		r.log.Warn("api key public id collision, retrying", "attempt", attempt)
	}

	token, err := AssembleToken(key.PublicID, secretPart)
	if err != nil {
		return nil, err
	}

	r.log.Info("api key created",
		"public_id", key.PublicID,
		"owner_user_id", key.OwnerUserID,
		"tenant_id", key.TenantID,
	)
	return &Issued{Token: token, Key: key}, nil
}

// Validate checks token and returns the matching active key. Every
// rejection is ErrInvalidKey; other errors come from the store.
//
// When updateLastUsed is set, LastUsedUTC is written on success. That write
// is best effort: a failure is logged and the key is still returned, and it
// is skipped entirely once ctx is done.
func (r *Repository) Validate(ctx context.Context, token string, updateLastUsed bool) (*models.APIKey, error) {
	publicID, secretPart, err := ParseToken(token)
	if err != nil {
		return nil, r.reject("malformed token", "")
	}

	key, err := r.store.GetAPIKeyByPublicID(ctx, publicID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, r.reject("unknown public id", publicID)
	}
	if err != nil {
		metric.APIKeyValidations.WithLabelValues(metric.ResultError).Inc()
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	now := r.now()
	if !key.IsActive(now) {
		reason := "expired"
		if key.IsRevoked() {
			reason = "revoked"
		}
		return nil, r.reject(reason, publicID)
	}

	if !ConstantTimeEquals(ComputeHash(r.secret, publicID, secretPart), key.Hash) {
		return nil, r.reject("hash mismatch", publicID)
	}

	metric.APIKeyValidations.WithLabelValues(metric.ResultValid).Inc()
	if updateLastUsed {
		r.touch(ctx, key, now)
	}
	return key, nil
}

func (r *Repository) touch(ctx context.Context, key *models.APIKey, now time.Time) {
	if ctx.Err() != nil {
		r.log.Debug("skipping api key last used update", "public_id", key.PublicID, "error", ctx.Err())
		return
	}
	if err := r.store.UpdateAPIKeyLastUsed(ctx, key.ID, now); err != nil {
		r.log.Warn("failed to update api key last used", "public_id", key.PublicID, "error", err)
		return
	}
	key.LastUsedUTC = &now
}

func (r *Repository) reject(reason, publicID string) error {
	metric.APIKeyValidations.WithLabelValues(metric.ResultInvalid).Inc()
	r.log.Debug("api key rejected", "reason", reason, "public_id", publicID)
	return ErrInvalidKey
}

// Revoke revokes the key identified by publicID when it belongs to
// ownerUserID within tenantID. It returns false when no such active key
// exists.
func (r *Repository) Revoke(ctx context.Context, publicID string, ownerUserID int64, tenantID string) (bool, error) {
	ok, err := r.store.RevokeAPIKey(ctx, publicID, ownerUserID, tenantID, r.now())
	if err != nil {
		return false, err
	}
	if ok {
		r.log.Info("api key revoked", "public_id", publicID, "owner_user_id", ownerUserID, "tenant_id", tenantID)
	}
	return ok, nil
}

// List returns every key of the owner within the tenant, newest first,
// including revoked and expired ones.
func (r *Repository) List(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error) {
	return r.store.ListAPIKeys(ctx, ownerUserID, tenantID)
}

// ListActive is List restricted to keys that are currently active.
func (r *Repository) ListActive(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error) {
	keys, err := r.List(ctx, ownerUserID, tenantID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	active := keys[:0]
	for _, k := range keys {
		if k.IsActive(now) {
			active = append(active, k)
		}
	}
	return active, nil
}
