package pricing

import (
	"github.com/shopspring/decimal"
)

// Degradation names a pricing input that could not be resolved and was
// replaced by a safe default.
type Degradation string

// Degradations
const (
	DegradedShipping Degradation = "shipping"
	DegradedFX       Degradation = "fx"
)

// QuoteInput describes one sellable unit.
type QuoteInput struct {
	UnitCost   decimal.Decimal
	Currency   string
	WeightKg   decimal.Decimal
	Dimensions Dimensions
}

// Result is a fully computed price for one unit. Only FinalPrice is ever
// persisted.
type Result struct {
	Weight        WeightBreakdown `json:"weight"`
	UnitCostLocal decimal.Decimal `json:"unit_cost_local"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	LandedCost    decimal.Decimal `json:"landed_cost"`
	RetailPrice   decimal.Decimal `json:"retail_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Anomalies     []Anomaly       `json:"anomalies,omitempty"`
	Degraded      []Degradation   `json:"degraded,omitempty"`
}

// IsDegraded reports whether d was applied while computing r
func (r Result) IsDegraded(d Degradation) bool {
	for _, got := range r.Degraded {
		if got == d {
			return true
		}
	}
	return false
}

// Quote prices one unit under p. Shipping and FX failures degrade instead of
// failing: an unusable tier table prices shipping at zero and a non-positive
// rate leaves the cost unconverted. Only a margin or granularity the
// calculator cannot accept returns an error.
func Quote(p Policy, in QuoteInput) (Result, error) {
	calc, err := NewRetailCalculatorForPolicy(p)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.Weight = BilledWeight(in.WeightKg, in.Dimensions, p.VolumetricDivisor)

	cost := nonNegative(in.UnitCost)
	if p.NeedsConversion(in.Currency) {
		if p.FXRate.IsPositive() {
			cost = cost.Mul(p.FXRate)
		} else {
			res.Degraded = append(res.Degraded, DegradedFX)
		}
	}
	res.UnitCostLocal = cost.Round(2)

	table, err := NewShippingTable(p.Tiers)
	if err != nil {
		res.ShippingCost = decimal.Zero
		res.Degraded = append(res.Degraded, DegradedShipping)
	} else {
		res.ShippingCost = table.Cost(res.Weight.Billed)
	}

	res.LandedCost = res.UnitCostLocal.Add(res.ShippingCost).Add(nonNegative(p.HandlingFee)).Round(2)
	res.RetailPrice = calc.Calculate(res.LandedCost)
	res.FinalPrice = ClampToFloor(res.RetailPrice, p.FloorPrice)
	res.Anomalies = DetectAnomalies(AnomalyInput{
		ActualWeight:     res.Weight.Actual,
		VolumetricWeight: res.Weight.Volumetric,
		BilledWeight:     res.Weight.Billed,
		ShippingCost:     res.ShippingCost,
		LandedCost:       res.LandedCost,
		RetailPrice:      res.FinalPrice,
	}, p.Anomaly)

	return res, nil
}
