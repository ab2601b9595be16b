package tax

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxBand is one slice of the graduated income scale. An invalid Upper marks the open-ended top band.
type TaxBand struct {
	Lower Money               `json:"lower"`
	Upper decimal.NullDecimal `json:"upper"`
	Rate  Rate                `json:"rate"`
	Label string              `json:"label"`
}

// Unbounded reports whether the band has no upper limit.
func (b TaxBand) Unbounded() bool {
	return !b.Upper.Valid
}

// BandTable is an ordered, validated and immutable list of bands covering [0, ∞).
type BandTable struct {
	bands []TaxBand
}

// NewBandTable validates bands and returns a table holding its own copy of them.
func NewBandTable(bands []TaxBand) (BandTable, error) {
	if len(bands) == 0 {
		return BandTable{}, rulesErr("bands", "at least one band is required")
	}
	for i, band := range bands {
		field := fmt.Sprintf("bands[%d]", i)
		if strings.TrimSpace(band.Label) == "" {
			return BandTable{}, rulesErr(field, "label is required")
		}
		if !validRate(band.Rate) {
			return BandTable{}, rulesErr(field, "rate %s outside [0,1]", band.Rate)
		}
		if i == 0 && !band.Lower.IsZero() {
			return BandTable{}, rulesErr(field, "first band must start at 0, got %s", band.Lower)
		}
		if i > 0 {
			prev := bands[i-1]
			if prev.Unbounded() {
				return BandTable{}, rulesErr(fmt.Sprintf("bands[%d]", i-1), "only the last band may be unbounded")
			}
			if !band.Lower.Equal(prev.Upper.Decimal) {
				return BandTable{}, rulesErr(field, "lower bound %s does not continue previous upper bound %s", band.Lower, prev.Upper.Decimal)
			}
		}
		if !band.Unbounded() && !band.Upper.Decimal.GreaterThan(band.Lower) {
			return BandTable{}, rulesErr(field, "upper bound %s must exceed lower bound %s", band.Upper.Decimal, band.Lower)
		}
	}
	if !bands[len(bands)-1].Unbounded() {
		return BandTable{}, rulesErr(fmt.Sprintf("bands[%d]", len(bands)-1), "last band must be unbounded")
	}
	owned := make([]TaxBand, len(bands))
	copy(owned, bands)
	return BandTable{bands: owned}, nil
}

// Bands returns a copy of the table rows.
func (t BandTable) Bands() []TaxBand {
	out := make([]TaxBand, len(t.bands))
	copy(out, t.bands)
	return out
}

// Len returns the number of bands.
func (t BandTable) Len() int {
	return len(t.bands)
}

// TopFiniteBound is the lower bound of the open-ended band.
func (t BandTable) TopFiniteBound() Money {
	if len(t.bands) == 0 {
		return decimal.Zero
	}
	return t.bands[len(t.bands)-1].Lower
}

// MarshalJSON renders the table as its band list.
func (t BandTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.bands)
}
