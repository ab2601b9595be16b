package tax

import "github.com/shopspring/decimal"

// BandContribution is the share of taxable income that landed in one band.
type BandContribution struct {
	Label         string `json:"label"`
	Rate          Rate   `json:"rate"`
	TaxableAmount Money  `json:"taxable_amount"`
	Tax           Money  `json:"tax"`
}

// GraduatedResult is the outcome of walking a BandTable.
type GraduatedResult struct {
	TotalTax  Money              `json:"total_tax"`
	Breakdown []BandContribution `json:"breakdown"`
}

// ApplyBands allocates taxable across bands in ascending order. Walking stops as soon as
// the amount is exhausted, and bands receiving nothing are left out of the breakdown.
func ApplyBands(taxable Money, table BandTable) GraduatedResult {
	remaining := clamp(taxable)
	total := decimal.Zero
	breakdown := make([]BandContribution, 0, len(table.bands))
	for _, band := range table.bands {
		if !remaining.IsPositive() {
			break
		}
		width := remaining
		if !band.Unbounded() {
			width = band.Upper.Decimal.Sub(band.Lower)
		}
		allocated := decimal.Min(remaining, width)
		if !allocated.IsPositive() {
			continue
		}
		tax := allocated.Mul(band.Rate)
		breakdown = append(breakdown, BandContribution{
			Label:         band.Label,
			Rate:          band.Rate,
			TaxableAmount: allocated,
			Tax:           tax,
		})
		total = total.Add(tax)
		remaining = remaining.Sub(allocated)
	}
	return GraduatedResult{TotalTax: total, Breakdown: breakdown}
}
