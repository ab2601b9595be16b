package tax

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	assert.Equal(t, "NGN", rules.Currency)
	assert.Equal(t, 6, rules.Bands.Len())
	assertMoney(t, "3200000", rules.Bands.TopFiniteBound(), "top bound")
	assertMoney(t, "200000", rules.Relief.FixedFloor, "fixed floor")
	assertMoney(t, "0.01", rules.MinimumTaxRate, "minimum tax rate")
	assertMoney(t, "8", rules.PensionRatePercent, "pension")
	assertMoney(t, "2.5", rules.HousingFundRatePercent, "housing")
	assert.Len(t, rules.BusinessTiers.Tiers(), 3)
	assertMoney(t, "25000000", rules.EducationLevyRevenueThreshold, "levy threshold")
}

func TestBandTableValidation(t *testing.T) {
	upper := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(NewMoney(v)) }
	cases := []struct {
		name  string
		bands []TaxBand
		field string
	}{
		{"empty", nil, "bands"},
		{"first lower not zero", []TaxBand{{Lower: NewMoney(1), Rate: d("0.1"), Label: "a"}}, "bands[0]"},
		{"gap", []TaxBand{
			{Lower: decimal.Zero, Upper: upper(100), Rate: d("0.1"), Label: "a"},
			{Lower: NewMoney(150), Rate: d("0.2"), Label: "b"},
		}, "bands[1]"},
		{"rate above one", []TaxBand{{Lower: decimal.Zero, Rate: d("1.5"), Label: "a"}}, "bands[0]"},
		{"negative rate", []TaxBand{{Lower: decimal.Zero, Rate: d("-0.1"), Label: "a"}}, "bands[0]"},
		{"missing label", []TaxBand{{Lower: decimal.Zero, Rate: d("0.1")}}, "bands[0]"},
		{"no terminal band", []TaxBand{{Lower: decimal.Zero, Upper: upper(100), Rate: d("0.1"), Label: "a"}}, "bands[0]"},
		{"unbounded in the middle", []TaxBand{
			{Lower: decimal.Zero, Rate: d("0.1"), Label: "a"},
			{Lower: decimal.Zero, Rate: d("0.2"), Label: "b"},
		}, "bands[0]"},
		{"empty width", []TaxBand{
			{Lower: decimal.Zero, Upper: upper(0), Rate: d("0.1"), Label: "a"},
			{Lower: decimal.Zero, Rate: d("0.2"), Label: "b"},
		}, "bands[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBandTable(tc.bands)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRules))
			var rerr *RulesError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tc.field, rerr.Field)
		})
	}
}

func TestTierTableValidation(t *testing.T) {
	ceiling := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(NewMoney(v)) }
	_, err := NewTierTable([]BusinessTier{
		{Label: "a", MaxRevenue: ceiling(100), Rate: decimal.Zero},
		{Label: "b", MaxRevenue: ceiling(100), Rate: d("0.1")},
		{Label: "c", Rate: d("0.2")},
	})
	require.ErrorIs(t, err, ErrInvalidRules)

	_, err = NewTierTable([]BusinessTier{{Label: "a", MaxRevenue: ceiling(100), Rate: decimal.Zero}})
	require.ErrorIs(t, err, ErrInvalidRules)

	table, err := NewTierTable([]BusinessTier{
		{Label: "a", MaxRevenue: ceiling(100), Rate: decimal.Zero},
		{Label: "b", Rate: d("0.1")},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", table.Classify(NewMoney(100)).Label)
	assert.Equal(t, "b", table.Classify(NewMoney(101)).Label)
}

func TestParseRulesRejectsBadDocuments(t *testing.T) {
	docs := map[string]string{
		"unknown key":   "name: x\nsurprise: 1\n",
		"not a number":  "minimum_tax_rate: abc\n",
		"empty":         "",
		"missing bands": "relief:\n  fixed_floor: 1\nminimum_tax_rate: 0.01\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules(strings.NewReader(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRules)
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	doc := strings.Replace(string(defaultRulesYAML), "minimum_tax_rate: 0.01", "minimum_tax_rate: 0.02", 1)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	eng, err := LoadEngine(path)
	require.NoError(t, err)
	assertMoney(t, "0.02", eng.Rules().MinimumTaxRate, "minimum tax rate")

	res := eng.ComputePersonalIncomeTax(NewMoney(300_000), decimal.Zero)
	assertMoney(t, "6000", res.FinalTax, "final")

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewEngineRejectsZeroRules(t *testing.T) {
	_, err := NewEngine(Rules{})
	require.ErrorIs(t, err, ErrInvalidRules)
}
