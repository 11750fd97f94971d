package catalog

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/shared"
)

// Variant is a sellable option of a Product. Variants carry no history:
// reconciliation replaces the whole set on every run.
type Variant struct {
	shared.BaseEntity
	ProductID   uuid.UUID
	OptionLabel string
	ExternalSKU string
	Price       decimal.Decimal
	Stock       int64
	Position    int
}

// MaxOptionLabelLength is the longest option label, in characters, that
// fits catalog_variants.option_label.
const MaxOptionLabelLength = 200

// ValidateOptionLabel reports whether label fits a variant. Length is
// counted in characters so multibyte labels get the same allowance as the
// varchar column.
func ValidateOptionLabel(label string) error {
	if utf8.RuneCountInString(strings.TrimSpace(label)) > MaxOptionLabelLength {
		return shared.NewDomainError("INVALID_OPTION", "Option label cannot exceed 200 characters")
	}
	return nil
}

// NewVariant creates a variant of productID. Negative stock is stored as zero.
func NewVariant(productID uuid.UUID, optionLabel, externalSKU string, price decimal.Decimal, stock int64) (*Variant, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Variant must belong to a product")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Variant price cannot be negative")
	}
	optionLabel = strings.TrimSpace(optionLabel)
	if err := ValidateOptionLabel(optionLabel); err != nil {
		return nil, err
	}
	if stock < 0 {
		stock = 0
	}
	return &Variant{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		OptionLabel: optionLabel,
		ExternalSKU: strings.TrimSpace(externalSKU),
		Price:       price,
		Stock:       stock,
	}, nil
}
