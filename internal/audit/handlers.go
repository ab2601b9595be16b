package audit

import (
	"net/http"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

// Handler exposes the caller's own activity trail.
type Handler struct {
	Store Store
}

// List returns a page of the authenticated user's audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	rows, err := h.Store.ListByActor(r.Context(), userID, perPage, common.Offset(page, perPage))
	if err != nil {
		common.WriteError(w, r, common.NewAppError("AUDIT_QUERY_FAILED", "unable to fetch audit logs", http.StatusInternalServerError, err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(rows)},
	})
}
