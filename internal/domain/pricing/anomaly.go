package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Severity grades an anomaly for human review
type Severity string

// Anomaly severities
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Anomaly codes
const (
	AnomalyDimensionalWeight = "DIMENSIONAL_WEIGHT"
	AnomalyHighShippingRate  = "HIGH_SHIPPING_RATE"
	AnomalyThinMargin        = "THIN_MARGIN"
	AnomalyBelowLandedCost   = "BELOW_LANDED_COST"
	AnomalyShippingDominates = "SHIPPING_DOMINATES"
	AnomalyHeavyParcel       = "HEAVY_PARCEL"
)

// Anomaly is an advisory signal about a computed price. Anomalies never
// block persistence.
type Anomaly struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// AnomalyInput is the subset of a pricing result the detector inspects.
type AnomalyInput struct {
	ActualWeight     decimal.Decimal
	VolumetricWeight decimal.Decimal
	BilledWeight     decimal.Decimal
	ShippingCost     decimal.Decimal
	LandedCost       decimal.Decimal
	RetailPrice      decimal.Decimal
}

// AnomalyThresholds are the tunable limits of the detector rules.
type AnomalyThresholds struct {
	// VolumetricRatio flags parcels whose volumetric weight is at least this
	// multiple of the actual weight.
	VolumetricRatio decimal.Decimal
	// HighShippingPerKg flags shipping cost per billed kg above this value.
	HighShippingPerKg decimal.Decimal
	// MinRateCheckWeight is the billed weight below which the per-kg rule is
	// skipped; minimum tier charges make tiny parcels look expensive per kg.
	MinRateCheckWeight decimal.Decimal
	// ThinMarginRatio flags retail prices whose margin over landed cost is at
	// most this fraction of the retail price.
	ThinMarginRatio decimal.Decimal
	// ShippingShareRatio flags shipping above this fraction of retail.
	ShippingShareRatio decimal.Decimal
	// HeavyParcelWeight flags billed weights above this value.
	HeavyParcelWeight decimal.Decimal
}

// DefaultAnomalyThresholds returns the standard detector thresholds.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		VolumetricRatio:    decimal.NewFromInt(3),
		HighShippingPerKg:  decimal.NewFromInt(60),
		MinRateCheckWeight: decimal.RequireFromString("0.5"),
		ThinMarginRatio:    decimal.RequireFromString("0.05"),
		ShippingShareRatio: decimal.RequireFromString("0.60"),
		HeavyParcelWeight:  decimal.NewFromInt(10),
	}
}

// DetectAnomalies runs every rule over in and returns the anomalies found,
// in rule order. It never fails; a zero retail price skips the rules that
// are ratios of retail.
func DetectAnomalies(in AnomalyInput, th AnomalyThresholds) []Anomaly {
	var out []Anomaly

	if in.VolumetricWeight.IsPositive() &&
		in.VolumetricWeight.GreaterThanOrEqual(in.ActualWeight.Mul(th.VolumetricRatio)) {
		out = append(out, Anomaly{
			Code:     AnomalyDimensionalWeight,
			Severity: SeverityWarn,
			Message: fmt.Sprintf("disproportionate dimensional weight: volumetric %s kg vs actual %s kg",
				in.VolumetricWeight, in.ActualWeight),
		})
	}

	if in.BilledWeight.IsPositive() && in.BilledWeight.GreaterThanOrEqual(th.MinRateCheckWeight) {
		perKg := in.ShippingCost.Div(in.BilledWeight).Round(2)
		if perKg.GreaterThan(th.HighShippingPerKg) {
			out = append(out, Anomaly{
				Code:     AnomalyHighShippingRate,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("shipping cost %s per billed kg exceeds %s", perKg, th.HighShippingPerKg),
			})
		}
	}

	if in.RetailPrice.IsPositive() {
		// A loss is also a thin margin; both are reported.
		if in.RetailPrice.Sub(in.LandedCost).LessThanOrEqual(in.RetailPrice.Mul(th.ThinMarginRatio)) {
			out = append(out, Anomaly{
				Code:     AnomalyThinMargin,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("margin too thin: landed cost %s against retail %s", in.LandedCost, in.RetailPrice),
			})
		}
		if in.RetailPrice.LessThan(in.LandedCost) {
			out = append(out, Anomaly{
				Code:     AnomalyBelowLandedCost,
				Severity: SeverityError,
				Message:  fmt.Sprintf("retail price %s is below landed cost %s", in.RetailPrice, in.LandedCost),
			})
		}

		if in.ShippingCost.GreaterThan(in.RetailPrice.Mul(th.ShippingShareRatio)) {
			out = append(out, Anomaly{
				Code:     AnomalyShippingDominates,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("shipping %s exceeds %s of retail %s", in.ShippingCost, th.ShippingShareRatio, in.RetailPrice),
			})
		}
	}

	if in.BilledWeight.GreaterThan(th.HeavyParcelWeight) {
		out = append(out, Anomaly{
			Code:     AnomalyHeavyParcel,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("heavy parcel: billed weight %s kg", in.BilledWeight),
		})
	}

	return out
}

// HasSeverity reports whether any anomaly carries severity s
func HasSeverity(anomalies []Anomaly, s Severity) bool {
	for _, a := range anomalies {
		if a.Severity == s {
			return true
		}
	}
	return false
}
