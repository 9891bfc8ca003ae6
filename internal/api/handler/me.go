package handler

import (
	"net/http"

	mw "github.com/kiranshivaraju/insightdesk/internal/api/middleware"
	"github.com/kiranshivaraju/insightdesk/internal/api/response"
)

// Me handles GET /api/v1/me and echoes the authenticated identity.
func Me(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}
	response.JSON(w, id)
}
