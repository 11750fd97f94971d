package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoEnvelopes is returned when the recommender has nothing to choose from
var ErrNoEnvelopes = errors.New("pricing: no packaging envelopes configured")

// Envelope is a standard packaging option with its inner dimensions.
type Envelope struct {
	Code string     `json:"code"`
	Name string     `json:"name"`
	Size Dimensions `json:"size"`
}

// DefaultEnvelopes is the standard envelope catalog, smallest first.
func DefaultEnvelopes() []Envelope {
	return []Envelope{
		{Code: "poly-mailer-s", Name: "Small poly mailer", Size: dims(20, 15, 3)},
		{Code: "poly-mailer-m", Name: "Medium poly mailer", Size: dims(30, 25, 5)},
		{Code: "box-s", Name: "Small box", Size: dims(25, 20, 10)},
		{Code: "box-m", Name: "Medium box", Size: dims(35, 25, 15)},
		{Code: "box-l", Name: "Large box", Size: dims(45, 35, 25)},
	}
}

func dims(l, w, h int64) Dimensions {
	return Dimensions{
		Length: decimal.NewFromInt(l),
		Width:  decimal.NewFromInt(w),
		Height: decimal.NewFromInt(h),
	}
}

// Recommendation is the chosen envelope and what it costs in billed weight.
type Recommendation struct {
	Envelope  Envelope        `json:"envelope"`
	Effective Dimensions      `json:"effective"`
	Weight    WeightBreakdown `json:"weight"`
}

// RecommendPackaging picks the envelope yielding the lowest billed weight.
// Each envelope is sized up per axis to fit the product. Ties keep the
// first-declared envelope.
func RecommendPackaging(actualKg decimal.Decimal, product Dimensions, envelopes []Envelope, divisor decimal.Decimal) (Recommendation, error) {
	if len(envelopes) == 0 {
		return Recommendation{}, ErrNoEnvelopes
	}

	var best Recommendation
	for i, env := range envelopes {
		effective := Dimensions{
			Length: decimal.Max(env.Size.Length, product.Length),
			Width:  decimal.Max(env.Size.Width, product.Width),
			Height: decimal.Max(env.Size.Height, product.Height),
		}
		w := BilledWeight(actualKg, effective, divisor)
		if i == 0 || w.Billed.LessThan(best.Weight.Billed) {
			best = Recommendation{Envelope: env, Effective: effective, Weight: w}
		}
	}
	return best, nil
}
