// Package pricing implements landed-cost pricing: billed weight, duty-paid
// shipping tiers, retail price rounding, packaging selection and anomaly
// detection. Every function in this package is pure and safe for concurrent
// use.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy errors
var (
	ErrInvalidMargin      = errors.New("pricing: margin must be in [0, 1)")
	ErrInvalidGranularity = errors.New("pricing: rounding granularity cannot be negative")
	ErrInvalidEnding      = errors.New("pricing: price endings must be in [0, 1)")
	ErrInvalidFloor       = errors.New("pricing: floor price cannot be negative")
	ErrInvalidDivisor     = errors.New("pricing: volumetric divisor must be positive")
	ErrInvalidFXRate      = errors.New("pricing: fx rate must be positive")
	ErrInvalidFee         = errors.New("pricing: handling fee and vat rate cannot be negative")
)

// DefaultVolumetricDivisor is the carrier divisor (cm³ per kg) used when
// neither the caller nor the policy supplies one.
var DefaultVolumetricDivisor = decimal.NewFromInt(5000)

// Policy carries every knob of the landed-cost pricing pipeline. It is a
// plain value: callers load it once per run and may derive per-call
// variants with Merge.
type Policy struct {
	// Margin is the fraction of the retail price kept as margin (0.35 = 35%).
	Margin decimal.Decimal
	// Granularity is the rounding step applied before ending snapping.
	// Zero disables rounding.
	Granularity decimal.Decimal
	// Endings are the preferred decimal endings (0.95, 0.99). Empty disables
	// snapping.
	Endings []decimal.Decimal
	// FloorPrice is the lowest price a product may be published at.
	FloorPrice decimal.Decimal
	// HandlingFee is added to every landed cost.
	HandlingFee decimal.Decimal
	// VATRate is a flat VAT-like component applied to the preliminary price.
	VATRate decimal.Decimal
	// Tiers is the duty-paid shipping table, ascending by MaxWeight.
	Tiers []ShippingTier
	// VolumetricDivisor converts cm³ to volumetric kg.
	VolumetricDivisor decimal.Decimal
	// LocalCurrency is the currency prices are published in.
	LocalCurrency string
	// SourceCurrency is assumed for supplier costs that carry no currency.
	SourceCurrency string
	// FXRate converts one unit of SourceCurrency into LocalCurrency.
	FXRate decimal.Decimal
	// Anomaly holds the thresholds used by DetectAnomalies.
	Anomaly AnomalyThresholds
}

// DefaultPolicy returns the zero-configuration policy: 35% margin, 0.05
// rounding, .95/.99 endings, a 9.95 SAR floor, the standard SAR duty-paid
// tier table, a 5000 divisor and a CNY→SAR rate of 0.52.
func DefaultPolicy() Policy {
	return Policy{
		Margin:            decimal.RequireFromString("0.35"),
		Granularity:       decimal.RequireFromString("0.05"),
		Endings:           []decimal.Decimal{decimal.RequireFromString("0.95"), decimal.RequireFromString("0.99")},
		FloorPrice:        decimal.RequireFromString("9.95"),
		HandlingFee:       decimal.Zero,
		VATRate:           decimal.Zero,
		Tiers:             DefaultTiers(),
		VolumetricDivisor: DefaultVolumetricDivisor,
		LocalCurrency:     "SAR",
		SourceCurrency:    "CNY",
		FXRate:            decimal.RequireFromString("0.52"),
		Anomaly:           DefaultAnomalyThresholds(),
	}
}

// DefaultTiers returns the standard duty-paid shipping table in SAR.
func DefaultTiers() []ShippingTier {
	return []ShippingTier{
		{MaxWeight: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(25)},
		{MaxWeight: decimal.NewFromInt(1), Price: decimal.NewFromInt(35)},
		{MaxWeight: decimal.NewFromInt(2), Price: decimal.NewFromInt(55)},
		{MaxWeight: decimal.NewFromInt(3), Price: decimal.NewFromInt(75)},
		{MaxWeight: decimal.NewFromInt(5), Price: decimal.NewFromInt(110)},
		{MaxWeight: decimal.NewFromInt(10), Price: decimal.NewFromInt(190)},
		{MaxWeight: decimal.NewFromInt(20), Price: decimal.NewFromInt(340)},
	}
}

// Validate checks that the policy can be used for pricing.
func (p Policy) Validate() error {
	if p.Margin.IsNegative() || p.Margin.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: got %s", ErrInvalidMargin, p.Margin)
	}
	if p.Granularity.IsNegative() {
		return ErrInvalidGranularity
	}
	one := decimal.NewFromInt(1)
	for _, e := range p.Endings {
		if e.IsNegative() || e.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: got %s", ErrInvalidEnding, e)
		}
	}
	if p.FloorPrice.IsNegative() {
		return ErrInvalidFloor
	}
	if p.HandlingFee.IsNegative() || p.VATRate.IsNegative() {
		return ErrInvalidFee
	}
	if !p.VolumetricDivisor.IsPositive() {
		return ErrInvalidDivisor
	}
	if !p.FXRate.IsPositive() {
		return ErrInvalidFXRate
	}
	return ValidateTiers(p.Tiers)
}

// NeedsConversion reports whether a cost quoted in currency must be
// converted with FXRate. An empty currency is read as SourceCurrency.
func (p Policy) NeedsConversion(currency string) bool {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		c = strings.ToUpper(p.SourceCurrency)
	}
	return c != strings.ToUpper(p.LocalCurrency)
}

// PolicyOverride holds optional per-call replacements for policy fields.
// Nil pointers and a nil Tiers slice leave the base value untouched.
type PolicyOverride struct {
	Margin      *decimal.Decimal
	FloorPrice  *decimal.Decimal
	HandlingFee *decimal.Decimal
	FXRate      *decimal.Decimal
	Tiers       []ShippingTier
}

// Merge returns a copy of p with the override applied. The result is not
// validated; callers that accept untrusted overrides should call Validate.
func (p Policy) Merge(o *PolicyOverride) Policy {
	out := p
	out.Endings = append([]decimal.Decimal(nil), p.Endings...)
	out.Tiers = append([]ShippingTier(nil), p.Tiers...)
	if o == nil {
		return out
	}
	if o.Margin != nil {
		out.Margin = *o.Margin
	}
	if o.FloorPrice != nil {
		out.FloorPrice = *o.FloorPrice
	}
	if o.HandlingFee != nil {
		out.HandlingFee = *o.HandlingFee
	}
	if o.FXRate != nil {
		out.FXRate = *o.FXRate
	}
	if o.Tiers != nil {
		out.Tiers = append([]ShippingTier(nil), o.Tiers...)
	}
	return out
}
