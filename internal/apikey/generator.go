package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// TokenPrefix marks a value as an API key rather than a bearer JWT.
	TokenPrefix = "ak_"

	// PublicIDSize is the number of random bytes behind a public id.
	PublicIDSize = 10

	// DefaultSecretSize is the number of random bytes behind a secret.
	DefaultSecretSize = 32
)

// GeneratePublicID returns a Base32 encoded random identifier.
func GeneratePublicID() (string, error) {
	b, err := randomBytes(PublicIDSize)
	if err != nil {
		return "", err
	}
	return Base32Encode(b), nil
}

// GenerateSecretPart returns size random bytes encoded as standard Base64.
func GenerateSecretPart(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("apikey: secret size must be positive, got %d", size)
	}
	b, err := randomBytes(size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// AssembleToken builds the user facing token "ak_{publicID}.{secret}" where
// secret is the URL-safe rendering of secretPart's bytes.
func AssembleToken(publicID, secretPart string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(secretPart)
	if err != nil {
		return "", fmt.Errorf("apikey: decode secret part: %w", err)
	}
	return TokenPrefix + publicID + "." + Base64URLEncode(b), nil
}

// HasTokenPrefix reports whether s starts with the API key prefix,
// ignoring case.
func HasTokenPrefix(s string) bool {
	return len(s) >= len(TokenPrefix) && strings.EqualFold(s[:len(TokenPrefix)], TokenPrefix)
}

// ParseToken splits a token into its public id and the secret part in the
// form it was hashed with. The "ak_" prefix is optional.
func ParseToken(token string) (publicID, secretPart string, err error) {
	token = strings.TrimSpace(token)
	if HasTokenPrefix(token) {
		token = token[len(TokenPrefix):]
	}

	publicID, encoded, ok := strings.Cut(token, ".")
	if !ok || publicID == "" || encoded == "" {
		return "", "", ErrFormat
	}

	secret, err := Base64URLDecode(encoded)
	if err != nil {
		return "", "", err
	}
	return publicID, base64.StdEncoding.EncodeToString(secret), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("apikey: read random bytes: %w", err)
	}
	return b, nil
}
