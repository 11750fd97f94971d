package pricing

import "github.com/shopspring/decimal"

// Dimensions are package dimensions in centimetres.
type Dimensions struct {
	Length decimal.Decimal `json:"length_cm"`
	Width  decimal.Decimal `json:"width_cm"`
	Height decimal.Decimal `json:"height_cm"`
}

// Volume returns L×W×H with negative axes treated as zero.
func (d Dimensions) Volume() decimal.Decimal {
	return nonNegative(d.Length).Mul(nonNegative(d.Width)).Mul(nonNegative(d.Height))
}

// WeightBreakdown is the outcome of billed-weight resolution, in kg.
type WeightBreakdown struct {
	Actual     decimal.Decimal `json:"actual_kg"`
	Volumetric decimal.Decimal `json:"volumetric_kg"`
	Billed     decimal.Decimal `json:"billed_kg"`
}

// BilledWeight returns max(actual, L×W×H/divisor) rounded to 3 decimals.
// A non-positive divisor falls back to DefaultVolumetricDivisor.
func BilledWeight(actualKg decimal.Decimal, dims Dimensions, divisor decimal.Decimal) WeightBreakdown {
	if !divisor.IsPositive() {
		divisor = DefaultVolumetricDivisor
	}
	actual := nonNegative(actualKg)
	volumetric := dims.Volume().Div(divisor).Round(3)
	return WeightBreakdown{
		Actual:     actual,
		Volumetric: volumetric,
		Billed:     decimal.Max(actual, volumetric).Round(3),
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
