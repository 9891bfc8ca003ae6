// Package oauth implements the token endpoint and the api_key extension
// grant that exchanges an API key for a signed access token.
package oauth

import "errors"

// OAuth 2.0 error codes (RFC 6749 section 5.2).
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeInvalidScope         = "invalid_scope"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeServerError          = "server_error"
)

var (
	ErrInvalidGrant = errors.New("oauth: invalid grant")
	ErrInvalidScope = errors.New("oauth: invalid scope")
	ErrInvalidToken = errors.New("oauth: invalid access token")
)
