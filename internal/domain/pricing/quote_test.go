package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	t.Run("converts supplier cost and resolves shipping", func(t *testing.T) {
		res, err := Quote(DefaultPolicy(), QuoteInput{
			UnitCost:   d("60"),
			Currency:   "CNY",
			WeightKg:   d("0.8"),
			Dimensions: dims(20, 15, 10),
		})
		require.NoError(t, err)

		assertDecimal(t, d("0.6"), res.Weight.Volumetric)
		assertDecimal(t, d("0.8"), res.Weight.Billed)
		assertDecimal(t, d("31.20"), res.UnitCostLocal)
		assertDecimal(t, d("35"), res.ShippingCost)
		assertDecimal(t, d("66.20"), res.LandedCost)
		assertDecimal(t, d("101.95"), res.RetailPrice)
		assertDecimal(t, d("101.95"), res.FinalPrice)
		assert.Empty(t, res.Anomalies)
		assert.Empty(t, res.Degraded)
	})

	t.Run("local currency is not converted", func(t *testing.T) {
		res, err := Quote(DefaultPolicy(), QuoteInput{UnitCost: d("50"), Currency: "sar"})
		require.NoError(t, err)

		assertDecimal(t, d("50"), res.UnitCostLocal)
		assertDecimal(t, d("25"), res.ShippingCost)
		assertDecimal(t, d("75"), res.LandedCost)
		assertDecimal(t, d("115.95"), res.FinalPrice)
	})

	t.Run("handling fee joins the landed cost", func(t *testing.T) {
		p := DefaultPolicy()
		p.HandlingFee = d("5")

		res, err := Quote(p, QuoteInput{UnitCost: d("50"), Currency: "SAR"})
		require.NoError(t, err)

		assertDecimal(t, d("80"), res.LandedCost)
	})

	t.Run("unusable tier table degrades shipping to zero", func(t *testing.T) {
		p := DefaultPolicy()
		p.Tiers = nil

		res, err := Quote(p, QuoteInput{UnitCost: d("50"), Currency: "SAR"})
		require.NoError(t, err)

		assert.True(t, res.IsDegraded(DegradedShipping))
		assertDecimal(t, decimal.Zero, res.ShippingCost)
		assertDecimal(t, d("50"), res.LandedCost)
		assertDecimal(t, d("76.95"), res.FinalPrice)
	})

	t.Run("missing fx rate degrades to unconverted cost", func(t *testing.T) {
		p := DefaultPolicy()
		p.FXRate = decimal.Zero

		res, err := Quote(p, QuoteInput{UnitCost: d("50"), Currency: "CNY"})
		require.NoError(t, err)

		assert.True(t, res.IsDegraded(DegradedFX))
		assert.False(t, res.IsDegraded(DegradedShipping))
		assertDecimal(t, d("50"), res.UnitCostLocal)
		assertDecimal(t, d("115.95"), res.FinalPrice)
	})

	t.Run("final price is clamped to the floor", func(t *testing.T) {
		p := DefaultPolicy()
		p.Tiers = []ShippingTier{{MaxWeight: d("1"), Price: decimal.Zero}}

		res, err := Quote(p, QuoteInput{UnitCost: decimal.Zero, Currency: "SAR"})
		require.NoError(t, err)

		assertDecimal(t, d("0.95"), res.RetailPrice)
		assertDecimal(t, d("9.95"), res.FinalPrice)
	})

	t.Run("invalid margin is an error", func(t *testing.T) {
		p := DefaultPolicy()
		p.Margin = d("1.2")

		_, err := Quote(p, QuoteInput{UnitCost: d("10")})
		assert.ErrorIs(t, err, ErrInvalidMargin)
	})

	t.Run("anomalies are reported on the final price", func(t *testing.T) {
		res, err := Quote(DefaultPolicy(), QuoteInput{
			UnitCost:   d("5"),
			Currency:   "SAR",
			WeightKg:   d("0.5"),
			Dimensions: dims(40, 30, 20),
		})
		require.NoError(t, err)

		assert.Contains(t, codes(res.Anomalies), AnomalyDimensionalWeight)
		assert.Contains(t, codes(res.Anomalies), AnomalyShippingDominates)
	})
}
