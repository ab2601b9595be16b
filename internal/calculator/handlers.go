package calculator

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/obs"
)

// Handler serves the stateless /tax endpoints.
type Handler struct {
	Calc *Calculator
}

// Routes mounts the handlers on a fresh router.
func (h Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rules", h.Rules)
	r.Get("/relief", h.Relief)
	r.Post("/personal", h.Personal)
	r.Post("/payroll", h.Payroll)
	r.Post("/business", h.Business)
	return r
}

// Rules handles GET /tax/rules.
func (h Handler) Rules(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Calc.Engine.Rules()})
}

// Relief handles GET /tax/relief?gross_income=.
func (h Handler) Relief(w http.ResponseWriter, r *http.Request) {
	gross, ok := coerce([]byte(`"` + r.URL.Query().Get("gross_income") + `"`))
	if !ok || gross.IsNegative() {
		gross = decimal.Zero
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"gross_income": gross,
		"relief":       h.Calc.Relief(gross),
	}})
}

// Personal handles POST /tax/personal.
func (h Handler) Personal(w http.ResponseWriter, r *http.Request) {
	var req PersonalRequest
	if !decode(w, r, KindPersonal, &req) {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Calc.Personal(req)})
}

// Payroll handles POST /tax/payroll.
func (h Handler) Payroll(w http.ResponseWriter, r *http.Request) {
	var req PayrollRequest
	if !decode(w, r, KindPayroll, &req) {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Calc.Payroll(req)})
}

// Business handles POST /tax/business.
func (h Handler) Business(w http.ResponseWriter, r *http.Request) {
	var req BusinessRequest
	if !decode(w, r, KindBusiness, &req) {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Calc.Business(req)})
}

func decode(w http.ResponseWriter, r *http.Request, kind Kind, dst any) bool {
	if appErr := common.DecodeJSON(r, dst); appErr != nil {
		obs.ObserveTaxComputation(string(kind), "invalid", 0)
		common.WriteError(w, r, appErr)
		return false
	}
	return true
}
