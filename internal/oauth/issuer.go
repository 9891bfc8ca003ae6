package oauth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/insightdesk/internal/identity"
	"golang.org/x/crypto/hkdf"
)

const signingKeyInfo = "insightdesk access token signing key"

// DeriveSigningKey derives a 32 byte HS256 key from secret with HKDF-SHA256.
func DeriveSigningKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// Issuer mints and verifies HS256 access tokens.
type Issuer struct {
	key      []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer returns an Issuer signing with key.
func NewIssuer(key []byte, issuer string, lifetime time.Duration) *Issuer {
	return &Issuer{key: key, issuer: issuer, lifetime: lifetime, now: time.Now}
}

// Lifetime is the validity period of issued tokens.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Issue returns a signed access token carrying id's claims.
func (i *Issuer) Issue(id *identity.Identity) (string, error) {
	now := i.now()
	claims := id.Claims()
	claims["iss"] = i.issuer
	claims["iat"] = jwt.NewNumericDate(now)
	claims["nbf"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(i.lifetime))
	claims["jti"] = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies an access token and returns its identity.
func (i *Issuer) Parse(tokenStr string) (*identity.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	id, err := identity.FromClaims(claims)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return id, nil
}
