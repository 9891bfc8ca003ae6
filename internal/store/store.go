package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPublicID(ctx context.Context, publicID string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAPIKey(ctx context.Context, publicID string, ownerUserID int64, tenantID string, at time.Time) (bool, error)
	ListAPIKeys(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
}
