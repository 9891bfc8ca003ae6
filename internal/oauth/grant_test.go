package oauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"github.com/kiranshivaraju/insightdesk/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrant_NoScopesRequestedGrantsAll(t *testing.T) {
	keys, dir := newFakes()
	v := oauth.NewGrantValidator(keys, dir, nil)

	id, err := v.ValidateAPIKeyGrant(context.Background(), validToken, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, id.Scopes)
	assert.Equal(t, "spn:ak_ABCDEFGHIJKLMNOP", id.Subject)
	assert.Equal(t, "acme", id.TenantID)
	assert.Equal(t, int64(42), id.UserID)
	assert.Equal(t, identity.OriginAPIKey, id.AuthOrigin)
}

func TestGrant_SubsetOfScopes(t *testing.T) {
	keys, dir := newFakes()
	v := oauth.NewGrantValidator(keys, dir, nil)

	id, err := v.ValidateAPIKeyGrant(context.Background(), validToken, "read")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, id.Scopes)
}

func TestGrant_ScopeAllOrNothing(t *testing.T) {
	keys, dir := newFakes()
	keys.key.ScopesCSV = "read"
	v := oauth.NewGrantValidator(keys, dir, nil)

	id, err := v.ValidateAPIKeyGrant(context.Background(), validToken, "read write")
	assert.ErrorIs(t, err, oauth.ErrInvalidScope)
	assert.Nil(t, id)
}

func TestGrant_MissingKey(t *testing.T) {
	keys, dir := newFakes()
	v := oauth.NewGrantValidator(keys, dir, nil)

	_, err := v.ValidateAPIKeyGrant(context.Background(), "  ", "")
	assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	assert.Zero(t, keys.calls)
}

func TestGrant_InvalidKey(t *testing.T) {
	keys, dir := newFakes()
	v := oauth.NewGrantValidator(keys, dir, nil)

	_, err := v.ValidateAPIKeyGrant(context.Background(), "ak_WRONG.c2VjcmV0", "")
	assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
}

func TestGrant_OwnerMissing(t *testing.T) {
	keys, dir := newFakes()
	delete(dir.users, 42)
	v := oauth.NewGrantValidator(keys, dir, nil)

	_, err := v.ValidateAPIKeyGrant(context.Background(), validToken, "")
	assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
}

func TestGrant_InfrastructureErrors(t *testing.T) {
	keys, dir := newFakes()
	keys.err = errors.New("db down")
	v := oauth.NewGrantValidator(keys, dir, nil)

	_, err := v.ValidateAPIKeyGrant(context.Background(), validToken, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, oauth.ErrInvalidGrant)

	keys.err = nil
	dir.err = errors.New("directory down")
	_, err = v.ValidateAPIKeyGrant(context.Background(), validToken, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, oauth.ErrInvalidGrant)
}
