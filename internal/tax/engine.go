package tax

import "fmt"

// Engine exposes the four tax computations over one validated rule set.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	rules    Rules
	personal PersonalIncomeTaxEngine
	payroll  PayrollTaxEngine
	business BusinessTaxEngine
}

// NewEngine builds an engine from rules. Tables are validated again so that
// hand-assembled Rules values get the same checks as parsed ones.
func NewEngine(rules Rules) (*Engine, error) {
	if _, err := NewBandTable(rules.Bands.Bands()); err != nil {
		return nil, err
	}
	if _, err := NewTierTable(rules.BusinessTiers.Tiers()); err != nil {
		return nil, err
	}
	if err := rules.Relief.validate(); err != nil {
		return nil, err
	}
	if !validRate(rules.MinimumTaxRate) {
		return nil, rulesErr("minimum_tax_rate", "%s outside [0,1]", rules.MinimumTaxRate)
	}
	if !validRate(rules.EducationLevyRate) {
		return nil, rulesErr("business.education_levy.rate", "%s outside [0,1]", rules.EducationLevyRate)
	}

	personal := PersonalIncomeTaxEngine{
		Relief:         rules.Relief,
		Bands:          rules.Bands,
		MinimumTaxRate: rules.MinimumTaxRate,
	}
	return &Engine{
		rules:    rules,
		personal: personal,
		payroll: PayrollTaxEngine{
			Personal:                      personal,
			DefaultPensionRatePercent:     rules.PensionRatePercent,
			DefaultHousingFundRatePercent: rules.HousingFundRatePercent,
		},
		business: BusinessTaxEngine{
			Tiers:         rules.BusinessTiers,
			LevyRate:      rules.EducationLevyRate,
			LevyThreshold: rules.EducationLevyRevenueThreshold,
		},
	}, nil
}

// LoadEngine loads rules from path (built-in rules when empty) and builds an engine.
func LoadEngine(path string) (*Engine, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return NewEngine(rules)
}

// MustDefaultEngine returns an engine over the built-in rules and panics if they are invalid.
func MustDefaultEngine() *Engine {
	rules, err := DefaultRules()
	if err != nil {
		panic(fmt.Sprintf("tax: built-in rules: %v", err))
	}
	eng, err := NewEngine(rules)
	if err != nil {
		panic(fmt.Sprintf("tax: built-in rules: %v", err))
	}
	return eng
}

// Rules returns the rule set the engine was built from.
func (e *Engine) Rules() Rules {
	return e.rules
}

func (e *Engine) ComputePersonalIncomeTax(annualIncome, rentRelief Money) PersonalTaxResult {
	return e.personal.Compute(annualIncome, rentRelief)
}

func (e *Engine) ComputePayrollTax(monthlySalary Money, opts ...PayrollOption) PayrollResult {
	return e.payroll.Compute(monthlySalary, opts...)
}

func (e *Engine) ComputeBusinessTax(annualRevenue, annualExpenses Money) BusinessTaxResult {
	return e.business.Compute(annualRevenue, annualExpenses)
}

func (e *Engine) ComputeRelief(grossIncome Money) Money {
	return e.personal.Relief.Compute(grossIncome)
}
