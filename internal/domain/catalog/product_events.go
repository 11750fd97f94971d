package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeProductImported     = "ProductImported"
	EventTypeProductPriceChanged = "ProductPriceChanged"
)

// ProductImportedEvent is published when a supplier product is first linked
// to a local product
type ProductImportedEvent struct {
	shared.BaseDomainEvent
	ProductID  uuid.UUID `json:"product_id"`
	ExternalID string    `json:"external_id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
}

// NewProductImportedEvent creates a new ProductImportedEvent
func NewProductImportedEvent(product *Product) *ProductImportedEvent {
	externalID := ""
	if product.ExternalID != nil {
		externalID = *product.ExternalID
	}
	return &ProductImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductImported, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		ExternalID:      externalID,
		Slug:            product.Slug,
		Title:           product.Title,
	}
}

// ProductPriceChangedEvent is published when a product's price changes
type ProductPriceChangedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

// NewProductPriceChangedEvent creates a new ProductPriceChangedEvent
func NewProductPriceChangedEvent(product *Product, oldPrice decimal.Decimal) *ProductPriceChangedEvent {
	return &ProductPriceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductPriceChanged, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		OldPrice:        oldPrice,
		NewPrice:        product.Price,
	}
}
