package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	mw "github.com/kiranshivaraju/insightdesk/internal/api/middleware"
	"github.com/kiranshivaraju/insightdesk/internal/api/response"
	"github.com/kiranshivaraju/insightdesk/pkg/models"
)

const (
	maxCreateBodyBytes = 64 << 10
	keyRequestTimeout  = 10 * time.Second
)

// KeyManager is the subset of apikey.Repository the key handlers use.
type KeyManager interface {
	Create(ctx context.Context, p apikey.CreateParams) (*apikey.Issued, error)
	Revoke(ctx context.Context, publicID string, ownerUserID int64, tenantID string) (bool, error)
	List(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
	ListActive(ctx context.Context, ownerUserID int64, tenantID string) ([]*models.APIKey, error)
}

// CreateKeyRequest is the body of POST /api/v1/keys.
type CreateKeyRequest struct {
	Name          string          `json:"name"            validate:"required,max=100"`
	Scopes        []string        `json:"scopes"          validate:"required,min=1,max=32,dive,required,max=64,excludesall=0x2C"`
	ExpiresInDays *int            `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
	Metadata      json.RawMessage `json:"metadata"`
}

// KeyResponse is the public view of a key. The token is only set on create.
type KeyResponse struct {
	PublicID    string          `json:"public_id"`
	Token       string          `json:"token,omitempty"`
	Name        string          `json:"name"`
	TenantID    string          `json:"tenant_id"`
	Scopes      []string        `json:"scopes"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedUTC  time.Time       `json:"created_utc"`
	ExpiresUTC  *time.Time      `json:"expires_utc,omitempty"`
	RevokedUTC  *time.Time      `json:"revoked_utc,omitempty"`
	LastUsedUTC *time.Time      `json:"last_used_utc,omitempty"`
}

func newKeyResponse(k *models.APIKey) KeyResponse {
	resp := KeyResponse{
		PublicID:    k.PublicID,
		Name:        k.Name,
		TenantID:    k.TenantID,
		Scopes:      k.ScopeList(),
		CreatedUTC:  k.CreatedUTC,
		ExpiresUTC:  k.ExpiresUTC,
		RevokedUTC:  k.RevokedUTC,
		LastUsedUTC: k.LastUsedUTC,
	}
	if k.MetadataJSON != "" {
		resp.Metadata = json.RawMessage(k.MetadataJSON)
	}
	return resp
}

// KeyHandler serves the key management endpoints for the calling user.
type KeyHandler struct {
	keys     KeyManager
	validate *validator.Validate
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(keys KeyManager) *KeyHandler {
	return &KeyHandler{keys: keys, validate: validator.New()}
}

// Create handles POST /api/v1/keys.
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok || id.TenantID == "" {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
		return
	}

	var req CreateKeyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Request validation failed", validationDetails(err))
		return
	}
	if len(req.Metadata) > 0 && string(req.Metadata) != "null" && req.Metadata[0] != '{' {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "metadata must be a JSON object", nil)
		return
	}

	// A key-derived caller cannot mint a key broader than itself.
	if id.IsAPIKeyOrigin() {
		for _, s := range models.NormalizeScopes(req.Scopes) {
			if !id.HasScope(s) {
				response.Error(w, http.StatusForbidden, "FORBIDDEN",
					"Requested scopes exceed the caller's scopes", map[string]string{"scope": s})
				return
			}
		}
	}

	params := apikey.CreateParams{
		OwnerUserID: id.UserID,
		TenantID:    id.TenantID,
		Scopes:      req.Scopes,
		Name:        req.Name,
	}
	if req.ExpiresInDays != nil {
		lifetime := time.Duration(*req.ExpiresInDays) * 24 * time.Hour
		params.Lifetime = &lifetime
	}
	if len(req.Metadata) > 0 && string(req.Metadata) != "null" {
		params.MetadataJSON = string(req.Metadata)
	}

	ctx, cancel := context.WithTimeout(r.Context(), keyRequestTimeout)
	defer cancel()

	issued, err := h.keys.Create(ctx, params)
	if err != nil {
		slog.Error("create api key failed", "error", err, "user_id", id.UserID, "tenant_id", id.TenantID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	resp := newKeyResponse(issued.Key)
	resp.Token = issued.Token
	response.Created(w, resp)
}

// List handles GET /api/v1/keys. Revoked and expired keys are included only
// with include_revoked=true.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok || id.TenantID == "" {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
		return
	}

	includeRevoked := false
	if v := r.URL.Query().Get("include_revoked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "include_revoked must be a boolean", nil)
			return
		}
		includeRevoked = b
	}

	ctx, cancel := context.WithTimeout(r.Context(), keyRequestTimeout)
	defer cancel()

	list := h.keys.ListActive
	if includeRevoked {
		list = h.keys.List
	}
	keys, err := list(ctx, id.UserID, id.TenantID)
	if err != nil {
		slog.Error("list api keys failed", "error", err, "user_id", id.UserID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	out := make([]KeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, newKeyResponse(k))
	}
	response.Collection(w, out, response.PaginationMeta{
		Page:  1,
		Limit: len(out),
		Total: len(out),
	})
}

// Revoke handles DELETE /api/v1/keys/{publicID}.
func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok || id.TenantID == "" {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
		return
	}

	publicID := chi.URLParam(r, "publicID")
	if publicID == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "public id is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), keyRequestTimeout)
	defer cancel()

	revoked, err := h.keys.Revoke(ctx, publicID, id.UserID, id.TenantID)
	if err != nil {
		slog.Error("revoke api key failed", "error", err, "public_id", publicID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}
	if !revoked {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
		return
	}
	response.NoContent(w)
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}
