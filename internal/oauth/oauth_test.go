package oauth_test

import (
	"context"

	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

const validToken = "ak_ABCDEFGHIJKLMNOP.c2VjcmV0"

// --- fakes ---

type fakeKeys struct {
	key   *models.APIKey
	err   error
	calls int
}

func (f *fakeKeys) Validate(_ context.Context, token string, _ bool) (*models.APIKey, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if token != validToken || f.key == nil {
		return nil, apikey.ErrInvalidKey
	}
	return f.key, nil
}

type fakeUsers struct {
	users map[int64]*models.User
	err   error
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newFakes() (*fakeKeys, *fakeUsers) {
	keys := &fakeKeys{key: &models.APIKey{
		PublicID:    "ABCDEFGHIJKLMNOP",
		OwnerUserID: 42,
		TenantID:    "acme",
		ScopesCSV:   "read,write",
	}}
	dir := &fakeUsers{users: map[int64]*models.User{
		42: {ID: 42, Username: "alice", Email: "alice@acme.test"},
	}}
	return keys, dir
}
