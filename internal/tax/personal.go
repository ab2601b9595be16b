package tax

import "github.com/shopspring/decimal"

// PersonalTaxResult is the full assessment of an individual's annual income.
type PersonalTaxResult struct {
	GrossIncome          Money              `json:"gross_income"`
	ReliefAmount         Money              `json:"relief_amount"`
	RentRelief           Money              `json:"rent_relief"`
	TotalRelief          Money              `json:"total_relief"`
	TaxableIncome        Money              `json:"taxable_income"`
	ComputedTax          Money              `json:"computed_tax"`
	MinimumTax           Money              `json:"minimum_tax"`
	FinalTax             Money              `json:"final_tax"`
	IsMinimumTaxApplied  bool               `json:"is_minimum_tax_applied"`
	MonthlyTax           Money              `json:"monthly_tax"`
	EffectiveRatePercent decimal.Decimal    `json:"effective_rate_percent"`
	Breakdown            []BandContribution `json:"breakdown"`
}

// PersonalIncomeTaxEngine combines relief, the graduated bands and the minimum-tax floor.
type PersonalIncomeTaxEngine struct {
	Relief         ReliefCalculator
	Bands          BandTable
	MinimumTaxRate Rate
}

// Compute assesses annual income with an optional supplementary rent relief.
func (e PersonalIncomeTaxEngine) Compute(annualIncome, rentRelief Money) PersonalTaxResult {
	income := clamp(annualIncome)
	rent := clamp(rentRelief)
	result := e.assess(income, e.Relief.Compute(income), rent)
	result.RentRelief = rent
	return result
}

// assess runs the bands once every deduction from gross is known.
// extra is added on top of the standard relief.
func (e PersonalIncomeTaxEngine) assess(gross, relief, extra Money) PersonalTaxResult {
	totalRelief := relief.Add(extra)
	taxable := clamp(gross.Sub(totalRelief))
	graduated := ApplyBands(taxable, e.Bands)
	minimum := gross.Mul(e.MinimumTaxRate)
	final := decimal.Max(graduated.TotalTax, minimum)
	return PersonalTaxResult{
		GrossIncome:          gross,
		ReliefAmount:         relief,
		RentRelief:           decimal.Zero,
		TotalRelief:          totalRelief,
		TaxableIncome:        taxable,
		ComputedTax:          graduated.TotalTax,
		MinimumTax:           minimum,
		FinalTax:             final,
		IsMinimumTaxApplied:  minimum.GreaterThan(graduated.TotalTax),
		MonthlyTax:           monthly(final),
		EffectiveRatePercent: percentOf(final, gross),
		Breakdown:            graduated.Breakdown,
	}
}
