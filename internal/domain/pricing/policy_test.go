package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.NoError(t, p.Validate())
	assertDecimal(t, d("0.35"), p.Margin)
	assertDecimal(t, d("0.05"), p.Granularity)
	assert.Len(t, p.Endings, 2)
	assertDecimal(t, d("9.95"), p.FloorPrice)
	assertDecimal(t, d("5000"), p.VolumetricDivisor)
	assert.Equal(t, "SAR", p.LocalCurrency)
	assert.NotEmpty(t, p.Tiers)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr error
	}{
		{name: "margin of one", mutate: func(p *Policy) { p.Margin = d("1") }, wantErr: ErrInvalidMargin},
		{name: "negative margin", mutate: func(p *Policy) { p.Margin = d("-0.01") }, wantErr: ErrInvalidMargin},
		{name: "negative granularity", mutate: func(p *Policy) { p.Granularity = d("-0.05") }, wantErr: ErrInvalidGranularity},
		{name: "ending of one", mutate: func(p *Policy) { p.Endings = []decimal.Decimal{d("1")} }, wantErr: ErrInvalidEnding},
		{name: "negative floor", mutate: func(p *Policy) { p.FloorPrice = d("-1") }, wantErr: ErrInvalidFloor},
		{name: "negative vat", mutate: func(p *Policy) { p.VATRate = d("-0.1") }, wantErr: ErrInvalidFee},
		{name: "zero divisor", mutate: func(p *Policy) { p.VolumetricDivisor = decimal.Zero }, wantErr: ErrInvalidDivisor},
		{name: "zero fx rate", mutate: func(p *Policy) { p.FXRate = decimal.Zero }, wantErr: ErrInvalidFXRate},
		{name: "empty tiers", mutate: func(p *Policy) { p.Tiers = nil }, wantErr: ErrEmptyTierTable},
		{
			name: "non monotonic tiers",
			mutate: func(p *Policy) {
				p.Tiers = []ShippingTier{{MaxWeight: d("2"), Price: d("10")}, {MaxWeight: d("1"), Price: d("5")}}
			},
			wantErr: ErrNonMonotonicTiers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.wantErr)
		})
	}
}

func TestPolicy_Merge(t *testing.T) {
	base := DefaultPolicy()
	margin := d("0.5")
	floor := d("19.95")

	merged := base.Merge(&PolicyOverride{
		Margin:     &margin,
		FloorPrice: &floor,
		Tiers:      []ShippingTier{{MaxWeight: d("1"), Price: d("10")}},
	})

	assertDecimal(t, d("0.5"), merged.Margin)
	assertDecimal(t, d("19.95"), merged.FloorPrice)
	assert.Len(t, merged.Tiers, 1)
	assertDecimal(t, base.FXRate, merged.FXRate)

	assertDecimal(t, d("0.35"), base.Margin)
	assert.Len(t, base.Tiers, len(DefaultTiers()))

	merged.Endings[0] = d("0.5")
	assertDecimal(t, d("0.95"), base.Endings[0])

	assert.Equal(t, len(base.Tiers), len(base.Merge(nil).Tiers))
}

func TestPolicy_NeedsConversion(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.NeedsConversion("CNY"))
	assert.True(t, p.NeedsConversion(""))
	assert.True(t, p.NeedsConversion("usd"))
	assert.False(t, p.NeedsConversion("SAR"))
	assert.False(t, p.NeedsConversion(" sar "))
}
