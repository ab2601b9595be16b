package tax

import "github.com/shopspring/decimal"

// Money represents an amount in the rule set's currency, held as an exact decimal.
type Money = decimal.Decimal

// Rate is a fraction between 0 and 1.
type Rate = decimal.Decimal

// moneyPlaces is the precision derived amounts (monthly figures, percentages) are rounded to.
const moneyPlaces = 2

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// NewMoney returns a whole-unit amount.
func NewMoney(v int64) Money {
	return decimal.NewFromInt(v)
}

// ParseMoney parses a decimal string such as "5000000" or "1250.50".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// clamp keeps the engine total: negative amounts are treated as zero.
func clamp(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// fromPercent converts 8 into 0.08 without rounding.
func fromPercent(p decimal.Decimal) Rate {
	return p.Shift(-2)
}

func monthly(annual Money) Money {
	return annual.Div(twelve).Round(moneyPlaces)
}

// percentOf returns part/whole*100, or zero when whole is not positive.
func percentOf(part, whole Money) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(moneyPlaces)
}

func validRate(r Rate) bool {
	return !r.IsNegative() && r.LessThanOrEqual(one)
}
