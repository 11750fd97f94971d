// Package integration defines the normalized supplier feed model consumed by
// catalog reconciliation.
package integration

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/pricing"
	"github.com/storefront/landedcost/internal/domain/shared"
)

// MaxVariantsPerProduct caps the variant list of one supplier product
const MaxVariantsPerProduct = 500

// SupplierProduct is one product of a parsed supplier feed
type SupplierProduct struct {
	ExternalID string            `json:"external_id" validate:"required,max=128"`
	Name       string            `json:"name" validate:"required,max=255"`
	ImageURLs  []string          `json:"image_urls" validate:"omitempty,dive,url"`
	VideoURL   string            `json:"video_url,omitempty" validate:"omitempty,url"`
	Variants   []SupplierVariant `json:"variants" validate:"max=500,dive"`
}

// SupplierVariant is one purchasable option of a supplier product. Physical
// attributes are per variant because shipping is priced per variant.
type SupplierVariant struct {
	Size        string          `json:"size,omitempty" validate:"max=100"`
	Color       string          `json:"color,omitempty" validate:"max=100"`
	ExternalSKU string          `json:"external_sku,omitempty" validate:"max=128"`
	UnitCost    decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Stock       int64           `json:"stock"`
	WeightKg    decimal.Decimal `json:"weight_kg" validate:"gte=0"`
	LengthCm    decimal.Decimal `json:"length_cm"`
	WidthCm     decimal.Decimal `json:"width_cm"`
	HeightCm    decimal.Decimal `json:"height_cm"`
}

// Label joins the option attributes for display ("M / Red")
func (v SupplierVariant) Label() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{v.Size, v.Color} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

// Dimensions returns the parcel size of the variant
func (v SupplierVariant) Dimensions() pricing.Dimensions {
	return pricing.Dimensions{Length: v.LengthCm, Width: v.WidthCm, Height: v.HeightCm}
}

// QuoteInput converts the variant into a pricing input
func (v SupplierVariant) QuoteInput() pricing.QuoteInput {
	return pricing.QuoteInput{
		UnitCost:   v.UnitCost,
		Currency:   v.Currency,
		WeightKg:   v.WeightKg,
		Dimensions: v.Dimensions(),
	}
}

// TotalStock sums variant stock, counting negative values as zero
func (p *SupplierProduct) TotalStock() int64 {
	var total int64
	for _, v := range p.Variants {
		if v.Stock > 0 {
			total += v.Stock
		}
	}
	return total
}

// Normalize trims surrounding whitespace from every text field
func (p *SupplierProduct) Normalize() {
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	p.Name = strings.TrimSpace(p.Name)
	p.VideoURL = strings.TrimSpace(p.VideoURL)
	images := make([]string, 0, len(p.ImageURLs))
	for _, u := range p.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	p.ImageURLs = images
	for i := range p.Variants {
		v := &p.Variants[i]
		v.Size = strings.TrimSpace(v.Size)
		v.Color = strings.TrimSpace(v.Color)
		v.ExternalSKU = strings.TrimSpace(v.ExternalSKU)
		v.Currency = strings.ToUpper(strings.TrimSpace(v.Currency))
	}
}

// Validate normalizes p and checks it against its struct tags and the
// catalog limits its variants must satisfy once imported. The returned
// error is a *shared.DomainError with code INVALID_INPUT naming the first
// offending fields.
func (p *SupplierProduct) Validate() error {
	p.Normalize()
	err := validate().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return shared.NewDomainError(shared.ErrInvalidInput.Code, strings.Join(msgs, "; "))
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validate() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Decimals are validated by their float value so numeric tags apply.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		// Size and color each fit on their own but the joined label is
		// what gets stored.
		v.RegisterStructValidation(func(sl validator.StructLevel) {
			sv := sl.Current().Interface().(SupplierVariant)
			label := sv.Label()
			if catalog.ValidateOptionLabel(label) != nil {
				sl.ReportError(label, "option_label", "OptionLabel", "option_label", strconv.Itoa(catalog.MaxOptionLabelLength))
			}
		}, SupplierVariant{})
		validatorInst = v
	})
	return validatorInst
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "option_label":
		return fmt.Sprintf("%s (size and color combined) must be at most %s characters", field, fe.Param())
	case "alpha":
		return fmt.Sprintf("%s must contain only letters", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
