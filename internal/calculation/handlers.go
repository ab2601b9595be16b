package calculation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

// Handler serves /calculations for the authenticated user.
type Handler struct {
	Service *Service
}

type createRequest struct {
	CalcType string          `json:"calc_type" validate:"required"`
	Inputs   json.RawMessage `json:"inputs" validate:"required"`
}

// Create handles POST /calculations.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var req createRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	if appErr := common.ValidateStruct(req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	saved, err := h.Service.Create(r.Context(), userID, req.CalcType, req.Inputs)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": saved})
}

// List handles GET /calculations?page=&limit=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20, h.Service.MaxList)
	out, err := h.Service.List(r.Context(), userID, page, perPage)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// Delete handles DELETE /calculations/{id}.
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
