// Package apikey implements issuance, storage and validation of API keys.
//
// A key is presented as "ak_{publicID}.{secret}" where publicID is a
// Base32 lookup identifier and secret is Base64Url encoded random bytes.
// The server stores only an HMAC-SHA256 of "{publicID}:{secretPart}" keyed
// by a process-wide secret, so a database leak does not reveal usable keys.
package apikey

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrFormat is returned when an encoded value cannot be decoded.
var ErrFormat = errors.New("apikey: invalid format")

var (
	base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)
	base64URL   = base64.URLEncoding.Strict()
)

// ComputeHash returns the lowercase hex HMAC-SHA256 of "publicID:secretPart"
// keyed with serverSecret.
func ComputeHash(serverSecret, publicID, secretPart string) string {
	mac := hmac.New(sha256.New, []byte(serverSecret))
	mac.Write([]byte(publicID + ":" + secretPart))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEquals compares a and b without short-circuiting on the
// first differing byte. Strings of different length return false
// immediately; only the length is leaked.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Base32Encode encodes b with the RFC 4648 alphabet (A-Z, 2-7) without
// padding characters.
func Base32Encode(b []byte) string {
	return base32NoPad.EncodeToString(b)
}

// Base64URLEncode encodes b as unpadded URL-safe Base64.
func Base64URLEncode(b []byte) string {
	s := base64.StdEncoding.EncodeToString(b)
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return strings.TrimRight(s, "=")
}

// Base64URLDecode reverses Base64URLEncode. Padding is restored before
// decoding. Invalid characters, an impossible length or non-zero trailing
// bits return ErrFormat.
func Base64URLDecode(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 1:
		return nil, ErrFormat
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	b, err := base64URL.DecodeString(s)
	if err != nil {
		return nil, ErrFormat
	}
	return b, nil
}
