// Package users resolves API key owners from the user directory.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/insightdesk/internal/cache"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

// ErrNotFound is returned when no user has the requested id.
var ErrNotFound = store.ErrNotFound

const defaultTTL = 5 * time.Minute

// Directory looks users up by id.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// CachedDirectory is a read-through cache in front of a Directory. Cache
// failures are logged and fall through to the underlying directory.
type CachedDirectory struct {
	next  Directory
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedDirectory wraps next with c. A non-positive ttl uses the default.
func NewCachedDirectory(next Directory, c cache.Cache, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedDirectory{next: next, cache: c, ttl: ttl}
}

func (d *CachedDirectory) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	key := cache.UserKey(id)

	data, found, err := d.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("user cache read failed", "user_id", id, "error", err)
	}
	if found {
		var u models.User
		if err := json.Unmarshal(data, &u); err == nil {
			return &u, nil
		}
		slog.Warn("discarding corrupt user cache entry", "user_id", id)
	}

	u, err := d.next.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(u); err == nil {
		if err := d.cache.Set(ctx, key, data, d.ttl); err != nil {
			slog.Warn("user cache write failed", "user_id", id, "error", err)
		}
	}
	return u, nil
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
