package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RetailCalculator turns a landed cost into a customer-facing price:
// margin-divided, rounded to a granularity, then snapped to a preferred
// ending within the same integer floor. It never clamps to a floor price;
// see ClampToFloor.
type RetailCalculator struct {
	margin      decimal.Decimal
	vatRate     decimal.Decimal
	granularity decimal.Decimal
	endings     []decimal.Decimal
}

// NewRetailCalculator creates a calculator. Endings may be given in any
// order; they are sorted ascending so equidistant candidates resolve to
// the lower price.
func NewRetailCalculator(margin, granularity decimal.Decimal, endings []decimal.Decimal) (*RetailCalculator, error) {
	if margin.IsNegative() || margin.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidMargin, margin)
	}
	if granularity.IsNegative() {
		return nil, ErrInvalidGranularity
	}
	sorted := make([]decimal.Decimal, len(endings))
	copy(sorted, endings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})
	return &RetailCalculator{
		margin:      margin,
		vatRate:     decimal.Zero,
		granularity: granularity,
		endings:     sorted,
	}, nil
}

// NewRetailCalculatorForPolicy builds a calculator from a policy, including
// its VAT component.
func NewRetailCalculatorForPolicy(p Policy) (*RetailCalculator, error) {
	c, err := NewRetailCalculator(p.Margin, p.Granularity, p.Endings)
	if err != nil {
		return nil, err
	}
	if p.VATRate.IsNegative() {
		return nil, ErrInvalidFee
	}
	c.vatRate = p.VATRate
	return c, nil
}

// Preliminary returns landed / (1 - margin) with the VAT component applied.
func (c *RetailCalculator) Preliminary(landed decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return landed.Div(one.Sub(c.margin)).Mul(one.Add(c.vatRate))
}

// Calculate returns the retail price for a landed cost.
func (c *RetailCalculator) Calculate(landed decimal.Decimal) decimal.Decimal {
	rounded := c.roundToGranularity(c.Preliminary(landed))
	return c.snapToEnding(rounded)
}

// roundToGranularity rounds to the nearest multiple of the granularity,
// ties away from zero.
func (c *RetailCalculator) roundToGranularity(v decimal.Decimal) decimal.Decimal {
	if c.granularity.IsZero() {
		return v
	}
	return v.Div(c.granularity).Round(0).Mul(c.granularity)
}

// snapToEnding picks the preferred ending inside floor(v) closest to v.
func (c *RetailCalculator) snapToEnding(v decimal.Decimal) decimal.Decimal {
	if len(c.endings) == 0 {
		return v
	}
	floor := v.Floor()
	best := floor.Add(c.endings[0])
	bestDist := best.Sub(v).Abs()
	for _, e := range c.endings[1:] {
		candidate := floor.Add(e)
		dist := candidate.Sub(v).Abs()
		if dist.LessThan(bestDist) {
			best, bestDist = candidate, dist
		}
	}
	return best
}

// ClampToFloor returns price, raised to floor when it falls below it.
func ClampToFloor(price, floor decimal.Decimal) decimal.Decimal {
	if price.LessThan(floor) {
		return floor
	}
	return price
}
