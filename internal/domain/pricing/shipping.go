package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Shipping table errors
var (
	ErrEmptyTierTable    = errors.New("pricing: shipping tier table is empty")
	ErrNonMonotonicTiers = errors.New("pricing: shipping tier table is not monotonic")
)

// ShippingTier is one band of the duty-paid shipping table: every billed
// weight up to MaxWeight ships for Price.
type ShippingTier struct {
	MaxWeight decimal.Decimal `json:"max_weight_kg"`
	Price     decimal.Decimal `json:"price"`
}

// ValidateTiers rejects tables that cannot be resolved deterministically:
// empty tables, non-positive ceilings, negative prices, ceilings that are not
// strictly ascending and prices that decrease.
func ValidateTiers(tiers []ShippingTier) error {
	if len(tiers) == 0 {
		return ErrEmptyTierTable
	}
	for i, t := range tiers {
		if !t.MaxWeight.IsPositive() {
			return fmt.Errorf("%w: tier %d has non-positive max weight %s", ErrNonMonotonicTiers, i, t.MaxWeight)
		}
		if t.Price.IsNegative() {
			return fmt.Errorf("%w: tier %d has negative price %s", ErrNonMonotonicTiers, i, t.Price)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if !t.MaxWeight.GreaterThan(prev.MaxWeight) {
			return fmt.Errorf("%w: tier %d max weight %s does not exceed %s", ErrNonMonotonicTiers, i, t.MaxWeight, prev.MaxWeight)
		}
		if t.Price.LessThan(prev.Price) {
			return fmt.Errorf("%w: tier %d price %s is below %s", ErrNonMonotonicTiers, i, t.Price, prev.Price)
		}
	}
	return nil
}

// ShippingTable resolves billed weights to duty-paid shipping costs.
type ShippingTable struct {
	tiers []ShippingTier
}

// NewShippingTable validates tiers and returns a table over a private copy.
func NewShippingTable(tiers []ShippingTier) (*ShippingTable, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	copied := make([]ShippingTier, len(tiers))
	copy(copied, tiers)
	return &ShippingTable{tiers: copied}, nil
}

// Tiers returns a copy of the table's tiers
func (t *ShippingTable) Tiers() []ShippingTier {
	result := make([]ShippingTier, len(t.tiers))
	copy(result, t.tiers)
	return result
}

// Cost returns the price of the first tier whose ceiling covers billed.
// Beyond the last ceiling the cost grows linearly with the per-kg slope of
// the last two tiers; a single-tier table has no slope and stays flat.
func (t *ShippingTable) Cost(billed decimal.Decimal) decimal.Decimal {
	for _, tier := range t.tiers {
		if tier.MaxWeight.GreaterThanOrEqual(billed) {
			return tier.Price.Round(2)
		}
	}

	last := t.tiers[len(t.tiers)-1]
	if len(t.tiers) == 1 {
		return last.Price.Round(2)
	}
	prev := t.tiers[len(t.tiers)-2]
	slope := last.Price.Sub(prev.Price).Div(last.MaxWeight.Sub(prev.MaxWeight))
	excess := billed.Sub(last.MaxWeight)
	return last.Price.Add(slope.Mul(excess)).Round(2)
}
