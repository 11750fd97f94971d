package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEndings() []decimal.Decimal {
	return []decimal.Decimal{d("0.95"), d("0.99")}
}

func TestRetailCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name        string
		margin      string
		granularity string
		endings     []decimal.Decimal
		landed      string
		want        string
	}{
		{
			name:        "reference example snaps to .95",
			margin:      "0.35",
			granularity: "0.05",
			endings:     defaultEndings(),
			landed:      "50",
			want:        "76.95",
		},
		{
			name:        "snaps to closest ending of rounded value",
			margin:      "0",
			granularity: "0.05",
			endings:     defaultEndings(),
			landed:      "142.30",
			want:        "142.95",
		},
		{
			name:        "snaps up to .99 when closer",
			margin:      "0",
			granularity: "0.01",
			endings:     defaultEndings(),
			landed:      "142.98",
			want:        "142.99",
		},
		{
			name:        "equidistant endings prefer lower",
			margin:      "0",
			granularity: "0.01",
			endings:     []decimal.Decimal{d("0.99"), d("0.95")},
			landed:      "142.97",
			want:        "142.95",
		},
		{
			name:        "rounding carries into next integer floor",
			margin:      "0",
			granularity: "0.05",
			endings:     defaultEndings(),
			landed:      "142.98",
			want:        "143.95",
		},
		{
			name:        "no endings keeps rounded value",
			margin:      "0.5",
			granularity: "0.05",
			endings:     nil,
			landed:      "10",
			want:        "20",
		},
		{
			name:        "ties round away from zero",
			margin:      "0",
			granularity: "0.05",
			endings:     nil,
			landed:      "10.025",
			want:        "10.05",
		},
		{
			name:        "zero granularity skips rounding",
			margin:      "0.2",
			granularity: "0",
			endings:     nil,
			landed:      "10",
			want:        "12.5",
		},
		{
			name:        "never clamps to a floor",
			margin:      "0.35",
			granularity: "0.05",
			endings:     defaultEndings(),
			landed:      "1",
			want:        "1.95",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := NewRetailCalculator(d(tt.margin), d(tt.granularity), tt.endings)
			require.NoError(t, err)

			got := calc.Calculate(d(tt.landed))
			assertDecimal(t, d(tt.want), got, "landed %s: expected %s, got %s", tt.landed, tt.want, got)
		})
	}
}

func TestRetailCalculator_ReferenceExampleRange(t *testing.T) {
	calc, err := NewRetailCalculator(d("0.35"), d("0.05"), defaultEndings())
	require.NoError(t, err)

	assertDecimal(t, d("76.92"), calc.Preliminary(d("50")).Round(2))

	got := calc.Calculate(d("50"))
	assert.True(t, got.GreaterThanOrEqual(d("76")) && got.LessThan(d("80")), "expected high 70s, got %s", got)
	cents := got.Sub(got.Floor())
	assert.True(t, cents.Equal(d("0.95")) || cents.Equal(d("0.99")), "unexpected ending %s", cents)
}

func TestRetailCalculator_MonotonicInLandedCost(t *testing.T) {
	policies := []struct {
		name        string
		margin      string
		granularity string
		endings     []decimal.Decimal
	}{
		{name: "default", margin: "0.35", granularity: "0.05", endings: defaultEndings()},
		{name: "single ending", margin: "0.2", granularity: "0.10", endings: []decimal.Decimal{d("0.99")}},
		{name: "no rounding", margin: "0.5", granularity: "0", endings: defaultEndings()},
	}

	for _, p := range policies {
		t.Run(p.name, func(t *testing.T) {
			calc, err := NewRetailCalculator(d(p.margin), d(p.granularity), p.endings)
			require.NoError(t, err)

			step := d("0.07")
			prev := calc.Calculate(decimal.Zero)
			for landed := step; landed.LessThanOrEqual(d("300")); landed = landed.Add(step) {
				got := calc.Calculate(landed)
				assert.True(t, got.GreaterThanOrEqual(prev), "retail decreased at landed %s: %s < %s", landed, got, prev)
				prev = got
			}
		})
	}
}

func TestRetailCalculator_VAT(t *testing.T) {
	p := DefaultPolicy()
	p.VATRate = d("0.15")

	calc, err := NewRetailCalculatorForPolicy(p)
	require.NoError(t, err)

	assertDecimal(t, d("88.95"), calc.Calculate(d("50")))
}

func TestNewRetailCalculator_Validation(t *testing.T) {
	_, err := NewRetailCalculator(d("1"), d("0.05"), nil)
	assert.ErrorIs(t, err, ErrInvalidMargin)

	_, err = NewRetailCalculator(d("-0.1"), d("0.05"), nil)
	assert.ErrorIs(t, err, ErrInvalidMargin)

	_, err = NewRetailCalculator(d("0.3"), d("-0.05"), nil)
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestClampToFloor(t *testing.T) {
	assertDecimal(t, d("9.95"), ClampToFloor(d("1.95"), d("9.95")))
	assertDecimal(t, d("76.95"), ClampToFloor(d("76.95"), d("9.95")))
	assertDecimal(t, d("9.95"), ClampToFloor(d("9.95"), d("9.95")))
}
