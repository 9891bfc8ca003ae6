package oauth

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// Clients authenticates token endpoint callers against bcrypt hashed
// client secrets.
type Clients struct {
	secrets map[string][]byte
}

// NewClients builds a registry from client id to bcrypt hash. An empty
// registry disables client authentication.
func NewClients(hashes map[string]string) *Clients {
	c := &Clients{secrets: make(map[string][]byte, len(hashes))}
	for id, h := range hashes {
		c.secrets[id] = []byte(h)
	}
	return c
}

// Enabled reports whether any client is registered.
func (c *Clients) Enabled() bool {
	return len(c.secrets) > 0
}

// Authenticate checks the request's client credentials, taken from HTTP
// Basic auth or the client_id/client_secret form fields. It returns the
// client id on success.
func (c *Clients) Authenticate(r *http.Request) (string, bool) {
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if !c.Enabled() {
		return id, true
	}

	hash, known := c.secrets[id]
	if !known || secret == "" {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(secret)) != nil {
		return "", false
	}
	return id, true
}

// HashSecret returns a bcrypt hash suitable for OAUTH_CLIENTS.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
