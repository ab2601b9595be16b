package tax

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BusinessTier is a company-size class. MaxRevenue is an inclusive ceiling; invalid means open-ended.
type BusinessTier struct {
	Label      string              `json:"label"`
	MaxRevenue decimal.NullDecimal `json:"max_revenue"`
	Rate       Rate                `json:"rate"`
}

// TierTable is an ordered, validated list of revenue tiers.
type TierTable struct {
	tiers []BusinessTier
}

// NewTierTable validates tiers: strictly increasing ceilings ending in one open-ended tier.
func NewTierTable(tiers []BusinessTier) (TierTable, error) {
	if len(tiers) == 0 {
		return TierTable{}, rulesErr("business.tiers", "at least one tier is required")
	}
	for i, tier := range tiers {
		field := fmt.Sprintf("business.tiers[%d]", i)
		if strings.TrimSpace(tier.Label) == "" {
			return TierTable{}, rulesErr(field, "label is required")
		}
		if !validRate(tier.Rate) {
			return TierTable{}, rulesErr(field, "rate %s outside [0,1]", tier.Rate)
		}
		last := i == len(tiers)-1
		if !tier.MaxRevenue.Valid {
			if !last {
				return TierTable{}, rulesErr(field, "only the last tier may be open-ended")
			}
			continue
		}
		if last {
			return TierTable{}, rulesErr(field, "last tier must be open-ended")
		}
		if tier.MaxRevenue.Decimal.IsNegative() {
			return TierTable{}, rulesErr(field, "max_revenue must not be negative")
		}
		if i > 0 && !tier.MaxRevenue.Decimal.GreaterThan(tiers[i-1].MaxRevenue.Decimal) {
			return TierTable{}, rulesErr(field, "max_revenue %s must exceed previous tier", tier.MaxRevenue.Decimal)
		}
	}
	owned := make([]BusinessTier, len(tiers))
	copy(owned, tiers)
	return TierTable{tiers: owned}, nil
}

// Tiers returns a copy of the tier rows.
func (t TierTable) Tiers() []BusinessTier {
	out := make([]BusinessTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Classify returns the first tier whose ceiling is at or above revenue.
func (t TierTable) Classify(revenue Money) BusinessTier {
	for _, tier := range t.tiers {
		if !tier.MaxRevenue.Valid || revenue.LessThanOrEqual(tier.MaxRevenue.Decimal) {
			return tier
		}
	}
	return BusinessTier{}
}

// MarshalJSON renders the table as its tier list.
func (t TierTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.tiers)
}

// BusinessTaxResult is the company tax assessment for one year.
type BusinessTaxResult struct {
	AnnualRevenue        Money           `json:"annual_revenue"`
	AnnualExpenses       Money           `json:"annual_expenses"`
	TaxableProfit        Money           `json:"taxable_profit"`
	TierLabel            string          `json:"tier_label"`
	CompanyTaxRate       Rate            `json:"company_tax_rate"`
	CompanyTax           Money           `json:"company_tax"`
	EducationLevy        Money           `json:"education_levy"`
	TotalTax             Money           `json:"total_tax"`
	NetProfit            Money           `json:"net_profit"`
	EffectiveRatePercent decimal.Decimal `json:"effective_rate_percent"`
}

// BusinessTaxEngine applies the tier rate to profit plus the education levy.
// Both the tier and the levy key off revenue, not profit.
type BusinessTaxEngine struct {
	Tiers         TierTable
	LevyRate      Rate
	LevyThreshold Money
}

// Compute assesses a company from its annual revenue and expenses.
func (e BusinessTaxEngine) Compute(annualRevenue, annualExpenses Money) BusinessTaxResult {
	revenue := clamp(annualRevenue)
	expenses := clamp(annualExpenses)
	profit := clamp(revenue.Sub(expenses))

	tier := e.Tiers.Classify(revenue)
	companyTax := profit.Mul(tier.Rate)
	levy := decimal.Zero
	if revenue.GreaterThan(e.LevyThreshold) {
		levy = profit.Mul(e.LevyRate)
	}
	total := companyTax.Add(levy)

	return BusinessTaxResult{
		AnnualRevenue:        revenue,
		AnnualExpenses:       expenses,
		TaxableProfit:        profit,
		TierLabel:            tier.Label,
		CompanyTaxRate:       tier.Rate,
		CompanyTax:           companyTax,
		EducationLevy:        levy,
		TotalTax:             total,
		NetProfit:            profit.Sub(total),
		EffectiveRatePercent: percentOf(total, profit),
	}
}
