package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestPersonalIncomeTaxFiveMillion(t *testing.T) {
	eng := MustDefaultEngine()
	res := eng.ComputePersonalIncomeTax(NewMoney(5_000_000), decimal.Zero)

	assertMoney(t, "1200000", res.ReliefAmount, "relief")
	assertMoney(t, "1200000", res.TotalRelief, "total relief")
	assertMoney(t, "3800000", res.TaxableIncome, "taxable")
	assertMoney(t, "704000", res.ComputedTax, "computed")
	assertMoney(t, "50000", res.MinimumTax, "minimum")
	assertMoney(t, "704000", res.FinalTax, "final")
	assertMoney(t, "58666.67", res.MonthlyTax, "monthly")
	assertMoney(t, "14.08", res.EffectiveRatePercent, "effective rate")
	assert.False(t, res.IsMinimumTaxApplied)

	require.Len(t, res.Breakdown, 6)
	wantTax := []string{"21000", "33000", "75000", "95000", "336000", "144000"}
	for i, c := range res.Breakdown {
		assertMoney(t, wantTax[i], c.Tax, c.Label)
	}
	assert.Equal(t, "First ₦300,000", res.Breakdown[0].Label)
	assert.Equal(t, "Above ₦3,200,000", res.Breakdown[5].Label)
	assertMoney(t, "600000", res.Breakdown[5].TaxableAmount, "top band amount")
}

func TestPersonalIncomeTaxMinimumTaxApplies(t *testing.T) {
	eng := MustDefaultEngine()
	res := eng.ComputePersonalIncomeTax(NewMoney(300_000), decimal.Zero)

	assertMoney(t, "40000", res.TaxableIncome, "taxable")
	assertMoney(t, "2800", res.ComputedTax, "computed")
	assertMoney(t, "3000", res.MinimumTax, "minimum")
	assertMoney(t, "3000", res.FinalTax, "final")
	assert.True(t, res.IsMinimumTaxApplied)
	require.Len(t, res.Breakdown, 1)
}

func TestPersonalIncomeTaxZeroAndNegativeIncome(t *testing.T) {
	eng := MustDefaultEngine()
	for _, income := range []decimal.Decimal{decimal.Zero, NewMoney(-1_000)} {
		res := eng.ComputePersonalIncomeTax(income, NewMoney(-50))
		assert.True(t, res.GrossIncome.IsZero())
		assert.True(t, res.RentRelief.IsZero())
		assertMoney(t, "200000", res.ReliefAmount, "relief")
		assert.True(t, res.TaxableIncome.IsZero())
		assert.True(t, res.FinalTax.IsZero())
		assert.True(t, res.EffectiveRatePercent.IsZero())
		assert.False(t, res.IsMinimumTaxApplied)
		assert.Empty(t, res.Breakdown)
	}
}

func TestPersonalIncomeTaxRentReliefReducesTaxable(t *testing.T) {
	eng := MustDefaultEngine()
	base := eng.ComputePersonalIncomeTax(NewMoney(5_000_000), decimal.Zero)
	withRent := eng.ComputePersonalIncomeTax(NewMoney(5_000_000), NewMoney(500_000))

	assertMoney(t, "500000", withRent.RentRelief, "rent relief")
	assertMoney(t, "1700000", withRent.TotalRelief, "total relief")
	assertMoney(t, "3300000", withRent.TaxableIncome, "taxable")
	assert.True(t, withRent.FinalTax.LessThan(base.FinalTax))
}

func TestComputeRelief(t *testing.T) {
	eng := MustDefaultEngine()
	assertMoney(t, "200000", eng.ComputeRelief(decimal.Zero), "zero income")
	assertMoney(t, "200000", eng.ComputeRelief(NewMoney(-10)), "negative income")
	// 1% of 30M exceeds the fixed floor.
	assertMoney(t, "6300000", eng.ComputeRelief(NewMoney(30_000_000)), "large income")
}

func TestPayrollTaxDefaults(t *testing.T) {
	eng := MustDefaultEngine()
	res := eng.ComputePayrollTax(NewMoney(500_000))

	assertMoney(t, "6000000", res.AnnualSalary, "annual salary")
	assertMoney(t, "6000000", res.GrossIncome, "gross income")
	assertMoney(t, "8", res.PensionRatePercent, "pension rate")
	assertMoney(t, "2.5", res.HousingFundRatePercent, "housing rate")
	assertMoney(t, "40000", res.MonthlyPensionContribution, "monthly pension")
	assertMoney(t, "480000", res.AnnualPensionContribution, "annual pension")
	assertMoney(t, "12500", res.MonthlyHousingFundContribution, "monthly housing")
	assertMoney(t, "150000", res.AnnualHousingFundContribution, "annual housing")
	assertMoney(t, "1400000", res.ReliefAmount, "relief")
	assertMoney(t, "2030000", res.TotalRelief, "total relief")
	assertMoney(t, "3970000", res.TaxableIncome, "taxable")
	assertMoney(t, "744800", res.FinalTax, "final")
	assertMoney(t, "62066.67", res.MonthlyTax, "monthly tax")
	assertMoney(t, "385433.33", res.NetMonthlySalary, "net")
	assert.True(t, res.RentRelief.IsZero())
}

func TestPayrollTaxRateOptions(t *testing.T) {
	eng := MustDefaultEngine()
	res := eng.ComputePayrollTax(NewMoney(100_000), WithPensionRate(decimal.Zero), WithHousingFundRate(NewMoney(-3)))

	assert.True(t, res.PensionRatePercent.IsZero())
	assert.True(t, res.HousingFundRatePercent.IsZero())
	assert.True(t, res.MonthlyPensionContribution.IsZero())
	assert.True(t, res.MonthlyHousingFundContribution.IsZero())
	assert.True(t, res.NetMonthlySalary.Equal(res.MonthlySalary.Sub(res.MonthlyTax)))
}

func TestBusinessTaxScenarios(t *testing.T) {
	eng := MustDefaultEngine()

	small := eng.ComputeBusinessTax(NewMoney(20_000_000), NewMoney(10_000_000))
	assert.Equal(t, "Small Company", small.TierLabel)
	assert.True(t, small.CompanyTaxRate.IsZero())
	assert.True(t, small.CompanyTax.IsZero())
	assert.True(t, small.EducationLevy.IsZero())
	assert.True(t, small.TotalTax.IsZero())
	assertMoney(t, "10000000", small.NetProfit, "small net profit")

	medium := eng.ComputeBusinessTax(NewMoney(30_000_000), NewMoney(10_000_000))
	assert.Equal(t, "Medium Company", medium.TierLabel)
	assertMoney(t, "20000000", medium.TaxableProfit, "profit")
	assertMoney(t, "0.2", medium.CompanyTaxRate, "rate")
	assertMoney(t, "4000000", medium.CompanyTax, "company tax")
	assertMoney(t, "500000", medium.EducationLevy, "levy")
	assertMoney(t, "4500000", medium.TotalTax, "total")
	assertMoney(t, "15500000", medium.NetProfit, "net profit")
	assertMoney(t, "22.5", medium.EffectiveRatePercent, "effective rate")

	large := eng.ComputeBusinessTax(NewMoney(150_000_000), NewMoney(50_000_000))
	assert.Equal(t, "Large Company", large.TierLabel)
	assertMoney(t, "30000000", large.CompanyTax, "large company tax")
}

func TestBusinessTaxRevenueBoundary(t *testing.T) {
	eng := MustDefaultEngine()

	at := eng.ComputeBusinessTax(NewMoney(25_000_000), NewMoney(5_000_000))
	assert.Equal(t, "Small Company", at.TierLabel)
	assert.True(t, at.EducationLevy.IsZero())

	above := eng.ComputeBusinessTax(NewMoney(25_000_001), NewMoney(5_000_000))
	assert.Equal(t, "Medium Company", above.TierLabel)
	assert.True(t, above.EducationLevy.IsPositive())
}

func TestBusinessTaxLossMakingCompany(t *testing.T) {
	eng := MustDefaultEngine()
	res := eng.ComputeBusinessTax(NewMoney(40_000_000), NewMoney(60_000_000))
	assert.True(t, res.TaxableProfit.IsZero())
	assert.True(t, res.TotalTax.IsZero())
	assert.True(t, res.EffectiveRatePercent.IsZero())
	assert.Equal(t, "Medium Company", res.TierLabel)
}

func TestFinalTaxIsMonotonic(t *testing.T) {
	eng := MustDefaultEngine()
	prev := decimal.Zero
	for income := int64(0); income <= 12_000_000; income += 137_500 {
		res := eng.ComputePersonalIncomeTax(NewMoney(income), decimal.Zero)
		require.Truef(t, res.FinalTax.GreaterThanOrEqual(prev), "final tax dropped at income %d", income)
		prev = res.FinalTax
	}
}

func TestComputationsAreIdempotent(t *testing.T) {
	eng := MustDefaultEngine()
	assert.Equal(t, eng.ComputePersonalIncomeTax(NewMoney(2_750_000), NewMoney(100_000)),
		eng.ComputePersonalIncomeTax(NewMoney(2_750_000), NewMoney(100_000)))
	assert.Equal(t, eng.ComputePayrollTax(NewMoney(420_000)), eng.ComputePayrollTax(NewMoney(420_000)))
	assert.Equal(t, eng.ComputeBusinessTax(NewMoney(60_000_000), NewMoney(1_000_000)),
		eng.ComputeBusinessTax(NewMoney(60_000_000), NewMoney(1_000_000)))
}
