package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBilledWeight(t *testing.T) {
	tests := []struct {
		name           string
		actual         string
		dims           Dimensions
		divisor        decimal.Decimal
		wantVolumetric string
		wantBilled     string
	}{
		{
			name:           "volumetric equals actual",
			actual:         "1.2",
			dims:           dims(30, 20, 10),
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "1.2",
			wantBilled:     "1.2",
		},
		{
			name:           "bulky parcel bills volumetric",
			actual:         "0.5",
			dims:           dims(40, 30, 20),
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "4.8",
			wantBilled:     "4.8",
		},
		{
			name:           "dense parcel bills actual",
			actual:         "2",
			dims:           dims(10, 10, 10),
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "0.2",
			wantBilled:     "2",
		},
		{
			name:           "volumetric rounded to three decimals",
			actual:         "0.01",
			dims:           dims(7, 7, 7),
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "0.069",
			wantBilled:     "0.069",
		},
		{
			name:           "zero divisor falls back to default",
			actual:         "0.1",
			dims:           dims(30, 20, 10),
			divisor:        decimal.Zero,
			wantVolumetric: "1.2",
			wantBilled:     "1.2",
		},
		{
			name:           "custom divisor",
			actual:         "0.1",
			dims:           dims(30, 20, 10),
			divisor:        decimal.NewFromInt(6000),
			wantVolumetric: "1",
			wantBilled:     "1",
		},
		{
			name:   "negative dimension lets actual dominate",
			actual: "0.7",
			dims: Dimensions{
				Length: decimal.NewFromInt(-10),
				Width:  decimal.NewFromInt(20),
				Height: decimal.NewFromInt(30),
			},
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "0",
			wantBilled:     "0.7",
		},
		{
			name:           "zero dimensions",
			actual:         "0.25",
			dims:           Dimensions{},
			divisor:        DefaultVolumetricDivisor,
			wantVolumetric: "0",
			wantBilled:     "0.25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BilledWeight(d(tt.actual), tt.dims, tt.divisor)
			assertDecimal(t, d(tt.wantVolumetric), w.Volumetric, "volumetric: expected %s, got %s", tt.wantVolumetric, w.Volumetric)
			assertDecimal(t, d(tt.wantBilled), w.Billed, "billed: expected %s, got %s", tt.wantBilled, w.Billed)
		})
	}
}

func TestBilledWeight_IsMaxOfActualAndVolumetric(t *testing.T) {
	for actual := int64(0); actual <= 40; actual += 3 {
		for side := int64(0); side <= 60; side += 7 {
			a := decimal.NewFromInt(actual).Div(decimal.NewFromInt(4))
			w := BilledWeight(a, dims(side, side, side), DefaultVolumetricDivisor)
			assertDecimal(t, decimal.Max(w.Actual, w.Volumetric), w.Billed,
				"actual %s side %d: billed %s is not max(%s, %s)", a, side, w.Billed, w.Actual, w.Volumetric)
		}
	}
}
