package oauth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"github.com/kiranshivaraju/insightdesk/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() *identity.Identity {
	return &identity.Identity{
		Subject:    "spn:ak_ABCDEFGHIJKLMNOP",
		APIKeyID:   "ABCDEFGHIJKLMNOP",
		Username:   "alice",
		Email:      "alice@acme.test",
		UserID:     42,
		TenantID:   "acme",
		Scopes:     []string{"read"},
		AuthOrigin: identity.OriginAPIKey,
	}
}

func testIssuer(t *testing.T) *oauth.Issuer {
	t.Helper()
	key, err := oauth.DeriveSigningKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return oauth.NewIssuer(key, "insightdesk", time.Hour)
}

func TestDeriveSigningKey(t *testing.T) {
	a, err := oauth.DeriveSigningKey("secret-one")
	require.NoError(t, err)
	b, err := oauth.DeriveSigningKey("secret-one")
	require.NoError(t, err)
	c, err := oauth.DeriveSigningKey("secret-two")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIssuer_IssueAndParse(t *testing.T) {
	iss := testIssuer(t)

	token, err := iss.Issue(testIdentity())
	require.NoError(t, err)

	got, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), got)
}

func TestIssuer_RejectsOtherKey(t *testing.T) {
	token, err := testIssuer(t).Issue(testIdentity())
	require.NoError(t, err)

	other := oauth.NewIssuer([]byte("another-signing-key-0123456789abc"), "insightdesk", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}

func TestIssuer_RejectsOtherIssuer(t *testing.T) {
	key, err := oauth.DeriveSigningKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	token, err := oauth.NewIssuer(key, "someone-else", time.Hour).Issue(testIdentity())
	require.NoError(t, err)

	_, err = testIssuer(t).Parse(token)
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	key, err := oauth.DeriveSigningKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	token, err := oauth.NewIssuer(key, "insightdesk", -time.Minute).Issue(testIdentity())
	require.NoError(t, err)

	_, err = testIssuer(t).Parse(token)
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := testIdentity().Claims()
	claims["iss"] = "insightdesk"
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = testIssuer(t).Parse(token)
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}

func TestIssuer_RejectsGarbage(t *testing.T) {
	_, err := testIssuer(t).Parse("not.a.jwt")
	assert.ErrorIs(t, err, oauth.ErrInvalidToken)
}
