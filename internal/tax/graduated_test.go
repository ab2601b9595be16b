package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultBands(t *testing.T) BandTable {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return rules.Bands
}

func TestApplyBandsBreakdownSumsToTotal(t *testing.T) {
	table := defaultBands(t)
	amounts := []string{"0", "0.01", "299999.99", "300000", "300000.01", "1100000", "3199999.5", "3200000", "3800000", "987654321.77"}
	for _, raw := range amounts {
		taxable := d(raw)
		res := ApplyBands(taxable, table)

		taxSum := decimal.Zero
		allocated := decimal.Zero
		for _, c := range res.Breakdown {
			taxSum = taxSum.Add(c.Tax)
			allocated = allocated.Add(c.TaxableAmount)
			assert.True(t, c.TaxableAmount.IsPositive(), "empty band in breakdown for %s", raw)
		}
		assert.Truef(t, taxSum.Equal(res.TotalTax), "tax sum %s != total %s for %s", taxSum, res.TotalTax, raw)
		assert.Truef(t, allocated.Equal(taxable), "allocated %s != taxable %s", allocated, raw)
	}
}

func TestApplyBandsStopsAtFirstPartialBand(t *testing.T) {
	res := ApplyBands(NewMoney(450_000), defaultBands(t))
	require.Len(t, res.Breakdown, 2)
	assertMoney(t, "300000", res.Breakdown[0].TaxableAmount, "first")
	assertMoney(t, "150000", res.Breakdown[1].TaxableAmount, "second")
	assertMoney(t, "37500", res.TotalTax, "total")
}

func TestApplyBandsNegativeTaxable(t *testing.T) {
	res := ApplyBands(NewMoney(-5), defaultBands(t))
	assert.True(t, res.TotalTax.IsZero())
	assert.Empty(t, res.Breakdown)
}

func TestBandTableIsImmutable(t *testing.T) {
	bands := []TaxBand{
		{Lower: decimal.Zero, Upper: decimal.NewNullDecimal(NewMoney(100)), Rate: d("0.1"), Label: "low"},
		{Lower: NewMoney(100), Rate: d("0.2"), Label: "high"},
	}
	table, err := NewBandTable(bands)
	require.NoError(t, err)

	bands[0].Rate = d("0.9")
	out := table.Bands()
	out[1].Label = "changed"

	assertMoney(t, "0.1", table.Bands()[0].Rate, "rate")
	assert.Equal(t, "high", table.Bands()[1].Label)
	assert.Equal(t, 2, table.Len())
	assertMoney(t, "100", table.TopFiniteBound(), "top bound")
}
