package reminder

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

// Handler serves /reminders for the authenticated user.
type Handler struct {
	Service *Service
}

// Create handles POST /reminders.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if appErr := common.DecodeJSON(r, &in); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	out, err := h.Service.Create(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// List handles GET /reminders.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	out, err := h.Service.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Update handles PUT and PATCH /reminders/{id}.
func (h Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if appErr := common.DecodeJSON(r, &in); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	out, err := h.Service.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Delete handles DELETE /reminders/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.Message(w, "Deleted")
}
