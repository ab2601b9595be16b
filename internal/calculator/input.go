package calculator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a lenient monetary input. JSON numbers and numeric strings are
// accepted; anything else, including null, decodes to zero without error.
type Amount struct {
	Value decimal.Decimal
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	if d, ok := coerce(b); ok {
		a.Value, a.Set = d, true
	}
	return nil
}

// MarshalJSON writes the numeric value, or null when the input was unusable.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// Or returns the value when it was supplied and fallback otherwise.
func (a Amount) Or(fallback decimal.Decimal) decimal.Decimal {
	if !a.Set {
		return fallback
	}
	return a.Value
}

// Rate is a percentage override (8 means 8%). Negative values count as absent.
type Rate struct {
	Amount
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rate) UnmarshalJSON(b []byte) error {
	if err := r.Amount.UnmarshalJSON(b); err != nil {
		return err
	}
	if r.Value.IsNegative() {
		r.Amount = Amount{}
	}
	return nil
}

// NewAmount is a convenience for callers building requests in Go.
func NewAmount(v decimal.Decimal) Amount { return Amount{Value: v, Set: true} }

// Amounts beyond these bounds are unusable input and coerce to zero.
const (
	maxAmountLen      = 64
	maxAmountExponent = 30
)

func coerce(b []byte) (decimal.Decimal, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return decimal.Zero, false
	}
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.NewReplacer(",", "", "_", "", " ", "").Replace(v)
	default:
		return decimal.Zero, false
	}
	if len(s) > maxAmountLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, false
	}
	return d, true
}

// PersonalRequest is the body of POST /tax/personal.
type PersonalRequest struct {
	AnnualIncome Amount `json:"annual_income"`
	RentRelief   Amount `json:"rent_relief"`
}

// PayrollRequest is the body of POST /tax/payroll.
type PayrollRequest struct {
	MonthlySalary          Amount `json:"monthly_salary"`
	PensionRatePercent     Rate   `json:"pension_rate_percent"`
	HousingFundRatePercent Rate   `json:"housing_fund_rate_percent"`
}

// BusinessRequest is the body of POST /tax/business.
type BusinessRequest struct {
	AnnualRevenue  Amount `json:"annual_revenue"`
	AnnualExpenses Amount `json:"annual_expenses"`
}
