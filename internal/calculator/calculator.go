// Package calculator exposes the tax engine over HTTP and to other services.
package calculator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/tax"
)

// Kind names one of the three computations.
type Kind string

const (
	KindPersonal Kind = "pit"
	KindPayroll  Kind = "paye"
	KindBusiness Kind = "business"
)

// Kinds lists the computations in display order.
var Kinds = []Kind{KindPersonal, KindPayroll, KindBusiness}

// KindList renders Kinds for error messages, e.g. "pit, paye, business".
func KindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// ParseKind accepts the short names and their long aliases.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "pit", "personal":
		return KindPersonal, true
	case "paye", "payroll":
		return KindPayroll, true
	case "business", "cit":
		return KindBusiness, true
	}
	return "", false
}

// Calculator turns coerced requests into engine calls and records metrics.
type Calculator struct {
	Engine *tax.Engine
}

// New wraps engine.
func New(engine *tax.Engine) *Calculator {
	return &Calculator{Engine: engine}
}

// Personal computes personal income tax.
func (c *Calculator) Personal(req PersonalRequest) tax.PersonalTaxResult {
	defer observe(KindPersonal, time.Now())
	return c.Engine.ComputePersonalIncomeTax(req.AnnualIncome.Value, req.RentRelief.Value)
}

// Payroll computes PAYE. Absent rates fall back to the rule defaults; 0 is honoured.
func (c *Calculator) Payroll(req PayrollRequest) tax.PayrollResult {
	defer observe(KindPayroll, time.Now())
	var opts []tax.PayrollOption
	if req.PensionRatePercent.Set {
		opts = append(opts, tax.WithPensionRate(req.PensionRatePercent.Value))
	}
	if req.HousingFundRatePercent.Set {
		opts = append(opts, tax.WithHousingFundRate(req.HousingFundRatePercent.Value))
	}
	return c.Engine.ComputePayrollTax(req.MonthlySalary.Value, opts...)
}

// Business computes company tax and the education levy.
func (c *Calculator) Business(req BusinessRequest) tax.BusinessTaxResult {
	defer observe(KindBusiness, time.Now())
	return c.Engine.ComputeBusinessTax(req.AnnualRevenue.Value, req.AnnualExpenses.Value)
}

// Relief returns the consolidated relief allowance for gross.
func (c *Calculator) Relief(gross decimal.Decimal) decimal.Decimal {
	return c.Engine.ComputeRelief(gross)
}

// Compute decodes raw inputs for kind and returns the engine result.
// Only malformed JSON is an error; unusable fields coerce to zero.
func (c *Calculator) Compute(kind Kind, raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindPersonal:
		var req PersonalRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			obs.ObserveTaxComputation(string(kind), "invalid", 0)
			return nil, fmt.Errorf("decode %s inputs: %w", kind, err)
		}
		return c.Personal(req), nil
	case KindPayroll:
		var req PayrollRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			obs.ObserveTaxComputation(string(kind), "invalid", 0)
			return nil, fmt.Errorf("decode %s inputs: %w", kind, err)
		}
		return c.Payroll(req), nil
	case KindBusiness:
		var req BusinessRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			obs.ObserveTaxComputation(string(kind), "invalid", 0)
			return nil, fmt.Errorf("decode %s inputs: %w", kind, err)
		}
		return c.Business(req), nil
	}
	return nil, fmt.Errorf("unknown calculation type %q", kind)
}

func observe(kind Kind, start time.Time) {
	obs.ObserveTaxComputation(string(kind), "ok", obs.DurationMillis(time.Since(start)))
}
