package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/insightdesk/internal/identity"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// GetIdentity returns the identity set by Authenticate.
func GetIdentity(r *http.Request) (*identity.Identity, bool) {
	return identity.FromContext(r.Context())
}

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
