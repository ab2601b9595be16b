package tax

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed rules/default.yaml
var defaultRulesYAML []byte

// Rules is the complete, validated rule set one engine computes with.
type Rules struct {
	Name                          string           `json:"name"`
	Currency                      string           `json:"currency"`
	Relief                        ReliefCalculator `json:"relief"`
	MinimumTaxRate                Rate             `json:"minimum_tax_rate"`
	Bands                         BandTable        `json:"bands"`
	PensionRatePercent            decimal.Decimal  `json:"pension_rate_percent"`
	HousingFundRatePercent        decimal.Decimal  `json:"housing_fund_rate_percent"`
	BusinessTiers                 TierTable        `json:"business_tiers"`
	EducationLevyRate             Rate             `json:"education_levy_rate"`
	EducationLevyRevenueThreshold Money            `json:"education_levy_revenue_threshold"`
}

// yamlDecimal reads a YAML scalar without passing through float64.
type yamlDecimal struct {
	decimal.Decimal
	set bool
}

func (d *yamlDecimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	d.Decimal = v
	d.set = true
	return nil
}

func (d yamlDecimal) nullable() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d.Decimal, Valid: d.set}
}

type rulesFile struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Relief   struct {
		FixedFloor yamlDecimal `yaml:"fixed_floor"`
		FloorRate  yamlDecimal `yaml:"floor_rate"`
		GrossRate  yamlDecimal `yaml:"gross_rate"`
	} `yaml:"relief"`
	MinimumTaxRate yamlDecimal `yaml:"minimum_tax_rate"`
	Bands          []struct {
		Label string      `yaml:"label"`
		Lower yamlDecimal `yaml:"lower"`
		Upper yamlDecimal `yaml:"upper"`
		Rate  yamlDecimal `yaml:"rate"`
	} `yaml:"bands"`
	Payroll struct {
		PensionRatePercent     yamlDecimal `yaml:"pension_rate_percent"`
		HousingFundRatePercent yamlDecimal `yaml:"housing_fund_rate_percent"`
	} `yaml:"payroll"`
	Business struct {
		Tiers []struct {
			Label      string      `yaml:"label"`
			MaxRevenue yamlDecimal `yaml:"max_revenue"`
			Rate       yamlDecimal `yaml:"rate"`
		} `yaml:"tiers"`
		EducationLevy struct {
			Rate             yamlDecimal `yaml:"rate"`
			RevenueThreshold yamlDecimal `yaml:"revenue_threshold"`
		} `yaml:"education_levy"`
	} `yaml:"business"`
}

// ParseRules decodes and validates a YAML rule document. Unknown keys are rejected.
func ParseRules(r io.Reader) (Rules, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f rulesFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Rules{}, rulesErr("document", "empty")
		}
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return f.build()
}

// LoadRules reads rules from path, or returns the built-in rules when path is empty.
func LoadRules(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules()
	}
	fh, err := os.Open(path)
	if err != nil {
		return Rules{}, fmt.Errorf("open tax rules: %w", err)
	}
	defer fh.Close()
	return ParseRules(fh)
}

// DefaultRules returns the built-in Nigerian rule set.
func DefaultRules() (Rules, error) {
	return ParseRules(bytes.NewReader(defaultRulesYAML))
}

func (f rulesFile) build() (Rules, error) {
	relief := ReliefCalculator{
		FixedFloor: f.Relief.FixedFloor.Decimal,
		FloorRate:  f.Relief.FloorRate.Decimal,
		GrossRate:  f.Relief.GrossRate.Decimal,
	}
	if err := relief.validate(); err != nil {
		return Rules{}, err
	}
	if !validRate(f.MinimumTaxRate.Decimal) {
		return Rules{}, rulesErr("minimum_tax_rate", "%s outside [0,1]", f.MinimumTaxRate.Decimal)
	}

	bands := make([]TaxBand, 0, len(f.Bands))
	for _, b := range f.Bands {
		bands = append(bands, TaxBand{
			Lower: b.Lower.Decimal,
			Upper: b.Upper.nullable(),
			Rate:  b.Rate.Decimal,
			Label: b.Label,
		})
	}
	table, err := NewBandTable(bands)
	if err != nil {
		return Rules{}, err
	}

	if f.Payroll.PensionRatePercent.IsNegative() || f.Payroll.PensionRatePercent.GreaterThan(hundred) {
		return Rules{}, rulesErr("payroll.pension_rate_percent", "%s outside [0,100]", f.Payroll.PensionRatePercent.Decimal)
	}
	if f.Payroll.HousingFundRatePercent.IsNegative() || f.Payroll.HousingFundRatePercent.GreaterThan(hundred) {
		return Rules{}, rulesErr("payroll.housing_fund_rate_percent", "%s outside [0,100]", f.Payroll.HousingFundRatePercent.Decimal)
	}

	tiers := make([]BusinessTier, 0, len(f.Business.Tiers))
	for _, t := range f.Business.Tiers {
		tiers = append(tiers, BusinessTier{Label: t.Label, MaxRevenue: t.MaxRevenue.nullable(), Rate: t.Rate.Decimal})
	}
	tierTable, err := NewTierTable(tiers)
	if err != nil {
		return Rules{}, err
	}

	levy := f.Business.EducationLevy
	if !validRate(levy.Rate.Decimal) {
		return Rules{}, rulesErr("business.education_levy.rate", "%s outside [0,1]", levy.Rate.Decimal)
	}
	if levy.RevenueThreshold.IsNegative() {
		return Rules{}, rulesErr("business.education_levy.revenue_threshold", "must not be negative")
	}

	return Rules{
		Name:                          f.Name,
		Currency:                      f.Currency,
		Relief:                        relief,
		MinimumTaxRate:                f.MinimumTaxRate.Decimal,
		Bands:                         table,
		PensionRatePercent:            f.Payroll.PensionRatePercent.Decimal,
		HousingFundRatePercent:        f.Payroll.HousingFundRatePercent.Decimal,
		BusinessTiers:                 tierTable,
		EducationLevyRate:             levy.Rate.Decimal,
		EducationLevyRevenueThreshold: levy.RevenueThreshold.Decimal,
	}, nil
}
