package tax

import "github.com/shopspring/decimal"

// PayrollResult extends the personal assessment with salary-level deductions.
type PayrollResult struct {
	PersonalTaxResult

	MonthlySalary                  Money           `json:"monthly_salary"`
	AnnualSalary                   Money           `json:"annual_salary"`
	PensionRatePercent             decimal.Decimal `json:"pension_rate_percent"`
	HousingFundRatePercent         decimal.Decimal `json:"housing_fund_rate_percent"`
	MonthlyPensionContribution     Money           `json:"monthly_pension_contribution"`
	AnnualPensionContribution      Money           `json:"annual_pension_contribution"`
	MonthlyHousingFundContribution Money           `json:"monthly_housing_fund_contribution"`
	AnnualHousingFundContribution  Money           `json:"annual_housing_fund_contribution"`
	NetMonthlySalary               Money           `json:"net_monthly_salary"`
}

type payrollRates struct {
	pensionPercent     decimal.Decimal
	housingFundPercent decimal.Decimal
}

// PayrollOption overrides a default contribution rate.
type PayrollOption func(*payrollRates)

// WithPensionRate sets the employee pension contribution as a percentage of salary (8 means 8%).
func WithPensionRate(percent decimal.Decimal) PayrollOption {
	return func(r *payrollRates) { r.pensionPercent = percent }
}

// WithHousingFundRate sets the housing-fund contribution as a percentage of salary.
func WithHousingFundRate(percent decimal.Decimal) PayrollOption {
	return func(r *payrollRates) { r.housingFundPercent = percent }
}

// PayrollTaxEngine derives take-home pay from a monthly salary.
type PayrollTaxEngine struct {
	Personal                      PersonalIncomeTaxEngine
	DefaultPensionRatePercent     decimal.Decimal
	DefaultHousingFundRatePercent decimal.Decimal
}

// Compute runs the payroll assessment. Rates are not checked against statutory minimums;
// negative values are treated as zero.
func (e PayrollTaxEngine) Compute(monthlySalary Money, opts ...PayrollOption) PayrollResult {
	rates := payrollRates{
		pensionPercent:     e.DefaultPensionRatePercent,
		housingFundPercent: e.DefaultHousingFundRatePercent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&rates)
		}
	}
	pensionPercent := clamp(rates.pensionPercent)
	housingPercent := clamp(rates.housingFundPercent)

	salary := clamp(monthlySalary)
	annual := salary.Mul(twelve)
	monthlyPension := salary.Mul(fromPercent(pensionPercent))
	monthlyHousing := salary.Mul(fromPercent(housingPercent))
	annualPension := monthlyPension.Mul(twelve)
	annualHousing := monthlyHousing.Mul(twelve)

	relief := e.Personal.Relief.Compute(annual)
	personal := e.Personal.assess(annual, relief, annualPension.Add(annualHousing))

	return PayrollResult{
		PersonalTaxResult:              personal,
		MonthlySalary:                  salary,
		AnnualSalary:                   annual,
		PensionRatePercent:             pensionPercent,
		HousingFundRatePercent:         housingPercent,
		MonthlyPensionContribution:     monthlyPension,
		AnnualPensionContribution:      annualPension,
		MonthlyHousingFundContribution: monthlyHousing,
		AnnualHousingFundContribution:  annualHousing,
		NetMonthlySalary:               salary.Sub(monthlyPension).Sub(monthlyHousing).Sub(personal.MonthlyTax),
	}
}
