package calculator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxestimator-api/internal/tax"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func newCalc() *Calculator { return New(tax.MustDefaultEngine()) }

func TestAmountCoercion(t *testing.T) {
	cases := []struct {
		in   string
		set  bool
		want string
	}{
		{`5000000`, true, "5000000"},
		{`"5000000"`, true, "5000000"},
		{`"5,000,000.50"`, true, "5000000.5"},
		{`1e6`, true, "1000000"},
		{`"abc"`, false, "0"},
		{`null`, false, "0"},
		{`true`, false, "0"},
		{`{"x":1}`, false, "0"},
		{`-20`, true, "-20"},
		{`1e30`, true, "1e30"},
		{`1e2000000`, false, "0"},
		{`"1e6000000"`, false, "0"},
		{`1e-31`, false, "0"},
		{`"` + strings.Repeat("9", 65) + `"`, false, "0"},
	}
	for _, tc := range cases {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(tc.in), &a), tc.in)
		assert.Equal(t, tc.set, a.Set, tc.in)
		assertDec(t, tc.want, a.Value)
	}
}

func TestComputeIgnoresHugeExponents(t *testing.T) {
	res, err := newCalc().Compute(KindPersonal, json.RawMessage(`{"annual_income":1e2000000}`))
	require.NoError(t, err)
	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Less(t, len(body), 4096)
}

func TestRateTreatsNegativeAsAbsent(t *testing.T) {
	var req PayrollRequest
	require.NoError(t, json.Unmarshal([]byte(`{"monthly_salary":500000,"pension_rate_percent":-1,"housing_fund_rate_percent":"0"}`), &req))
	assert.False(t, req.PensionRatePercent.Set)
	assert.True(t, req.HousingFundRatePercent.Set)
	assert.True(t, req.HousingFundRatePercent.Value.IsZero())
}

func TestAmountMarshal(t *testing.T) {
	out, err := json.Marshal(PersonalRequest{AnnualIncome: NewAmount(d("1200.5"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"annual_income":1200.5,"rent_relief":null}`, string(out))
}

func TestPayrollRateFallback(t *testing.T) {
	c := newCalc()

	var defaults PayrollRequest
	require.NoError(t, json.Unmarshal([]byte(`{"monthly_salary":500000,"pension_rate_percent":"n/a"}`), &defaults))
	res := c.Payroll(defaults)
	assertDec(t, "8", res.PensionRatePercent)
	assertDec(t, "2.5", res.HousingFundRatePercent)
	assertDec(t, "744800", res.FinalTax)

	var zero PayrollRequest
	require.NoError(t, json.Unmarshal([]byte(`{"monthly_salary":500000,"pension_rate_percent":0,"housing_fund_rate_percent":0}`), &zero))
	res = c.Payroll(zero)
	assert.True(t, res.PensionRatePercent.IsZero())
	assert.True(t, res.AnnualPensionContribution.IsZero())
}

func TestComputeByKind(t *testing.T) {
	c := newCalc()

	out, err := c.Compute(KindPersonal, json.RawMessage(`{"annual_income":"5000000"}`))
	require.NoError(t, err)
	personal, ok := out.(tax.PersonalTaxResult)
	require.True(t, ok)
	assertDec(t, "704000", personal.FinalTax)

	out, err = c.Compute(KindBusiness, json.RawMessage(`{"annual_revenue":20000000,"annual_expenses":5000000}`))
	require.NoError(t, err)
	business, ok := out.(tax.BusinessTaxResult)
	require.True(t, ok)
	assert.True(t, business.TotalTax.IsZero())

	out, err = c.Compute(KindPayroll, nil)
	require.NoError(t, err)
	_, ok = out.(tax.PayrollResult)
	assert.True(t, ok)

	_, err = c.Compute(KindPersonal, json.RawMessage(`[1,2]`))
	assert.Error(t, err)
	_, err = c.Compute("vat", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"pit": KindPersonal, "personal": KindPersonal, "paye": KindPayroll, "payroll": KindPayroll, "business": KindBusiness, "cit": KindBusiness} {
		got, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseKind("vat")
	assert.False(t, ok)
	assert.Equal(t, "pit, paye, business", KindList())
	for _, k := range Kinds {
		got, ok := ParseKind(string(k))
		assert.True(t, ok, k)
		assert.Equal(t, k, got)
	}
}

func serve(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := Handler{Calc: newCalc()}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func TestHandlerPersonal(t *testing.T) {
	rr := serve(t, http.MethodPost, "/personal", `{"annual_income":5000000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Data tax.PersonalTaxResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assertDec(t, "704000", body.Data.FinalTax)
	assertDec(t, "58666.67", body.Data.MonthlyTax)
	assertDec(t, "14.08", body.Data.EffectiveRatePercent)
	assert.Len(t, body.Data.Breakdown, 6)
}

func TestHandlerPayroll(t *testing.T) {
	rr := serve(t, http.MethodPost, "/payroll", `{"monthly_salary":"500000"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data tax.PayrollResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assertDec(t, "62066.67", body.Data.MonthlyTax)
	assertDec(t, "385433.33", body.Data.NetMonthlySalary)
}

func TestHandlerBusiness(t *testing.T) {
	rr := serve(t, http.MethodPost, "/business", `{"annual_revenue":50000000,"annual_expenses":30000000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data tax.BusinessTaxResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assertDec(t, "20000000", body.Data.TaxableProfit)
	assertDec(t, "4000000", body.Data.CompanyTax)
	assertDec(t, "500000", body.Data.EducationLevy)
	assertDec(t, "4500000", body.Data.TotalTax)
}

func TestHandlerGarbageInputsCoerceToZero(t *testing.T) {
	rr := serve(t, http.MethodPost, "/personal", `{"annual_income":"lots","rent_relief":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data tax.PersonalTaxResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Data.FinalTax.IsZero())
}

func TestHandlerMalformedJSON(t *testing.T) {
	rr := serve(t, http.MethodPost, "/business", `{"annual_revenue":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerReliefAndRules(t *testing.T) {
	rr := serve(t, http.MethodGet, "/relief?gross_income=30000000", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var relief struct {
		Data struct {
			Relief decimal.Decimal `json:"relief"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &relief))
	assertDec(t, "6300000", relief.Data.Relief)

	rr = serve(t, http.MethodGet, "/relief?gross_income=-5", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &relief))
	assertDec(t, "200000", relief.Data.Relief)

	rr = serve(t, http.MethodGet, "/rules", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"ng-pita-cita"`)
	assert.Contains(t, rr.Body.String(), "First ₦300,000")
}
