package apikey_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePublicID(t *testing.T) {
	id, err := apikey.GeneratePublicID()
	require.NoError(t, err)

	assert.Len(t, id, 16)
	assert.Regexp(t, "^[A-Z2-7]{16}$", id)

	other, err := apikey.GeneratePublicID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestGenerateSecretPart(t *testing.T) {
	part, err := apikey.GenerateSecretPart(32)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(part)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestGenerateSecretPart_InvalidSize(t *testing.T) {
	_, err := apikey.GenerateSecretPart(0)
	assert.Error(t, err)
}

func TestAssembleAndParseToken(t *testing.T) {
	id, err := apikey.GeneratePublicID()
	require.NoError(t, err)
	part, err := apikey.GenerateSecretPart(apikey.DefaultSecretSize)
	require.NoError(t, err)

	token, err := apikey.AssembleToken(id, part)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "ak_"+id+"."))
	assert.NotContains(t, token, "=")

	gotID, gotPart, err := apikey.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, part, gotPart)
}

func TestParseToken_PrefixOptionalAndCaseInsensitive(t *testing.T) {
	id, part := "ABCDEFGH", base64.StdEncoding.EncodeToString([]byte("0123456789"))
	token, err := apikey.AssembleToken(id, part)
	require.NoError(t, err)

	for _, tok := range []string{token, strings.TrimPrefix(token, "ak_"), "AK_" + strings.TrimPrefix(token, "ak_")} {
		gotID, gotPart, err := apikey.ParseToken(tok)
		require.NoError(t, err, tok)
		assert.Equal(t, id, gotID)
		assert.Equal(t, part, gotPart)
	}
}

func TestParseToken_Malformed(t *testing.T) {
	for _, tok := range []string{"", "ak_", "ak_ABC", "ak_.abcd", "ak_ABC.", "ak_ABC.a", "ak_ABC.ab*d"} {
		_, _, err := apikey.ParseToken(tok)
		assert.ErrorIs(t, err, apikey.ErrFormat, tok)
	}
}

func TestHasTokenPrefix(t *testing.T) {
	assert.True(t, apikey.HasTokenPrefix("ak_x"))
	assert.True(t, apikey.HasTokenPrefix("Ak_x"))
	assert.False(t, apikey.HasTokenPrefix("Bearer ak_x"))
	assert.False(t, apikey.HasTokenPrefix("ak"))
}
