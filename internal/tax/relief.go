package tax

import "github.com/shopspring/decimal"

// ReliefCalculator computes the consolidated relief allowance:
// max(FixedFloor, FloorRate×gross) + GrossRate×gross.
type ReliefCalculator struct {
	FixedFloor Money `json:"fixed_floor"`
	FloorRate  Rate  `json:"floor_rate"`
	GrossRate  Rate  `json:"gross_rate"`
}

// Compute returns the relief for gross income. Negative income counts as zero.
func (c ReliefCalculator) Compute(grossIncome Money) Money {
	gross := clamp(grossIncome)
	higherOf := decimal.Max(c.FixedFloor, gross.Mul(c.FloorRate))
	return higherOf.Add(gross.Mul(c.GrossRate))
}

func (c ReliefCalculator) validate() error {
	if c.FixedFloor.IsNegative() {
		return rulesErr("relief.fixed_floor", "must not be negative")
	}
	if !validRate(c.FloorRate) {
		return rulesErr("relief.floor_rate", "rate %s outside [0,1]", c.FloorRate)
	}
	if !validRate(c.GrossRate) {
		return rulesErr("relief.gross_rate", "rate %s outside [0,1]", c.GrossRate)
	}
	return nil
}
