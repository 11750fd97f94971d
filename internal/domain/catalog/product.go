package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/shared"
)

// Product is a local catalog record. Supplier-derived fields (title,
// price, stock, media) are written by reconciliation; the category is
// curated locally and never overwritten by it.
type Product struct {
	shared.BaseAggregateRoot
	ExternalID *string
	Slug       string
	Title      string
	Price      decimal.Decimal
	Stock      int64
	Images     []string
	VideoURL   string
	CategoryID *uuid.UUID
	SyncedAt   *time.Time
}

// NewProduct creates a new product
func NewProduct(title, slug string) (*Product, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Slug:              slug,
		Title:             strings.TrimSpace(title),
		Price:             decimal.Zero,
		Images:            []string{},
	}
	return product, nil
}

// LinkExternalID binds the product to a supplier product key. It records a
// ProductImported event the first time a key is linked.
func (p *Product) LinkExternalID(externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	if utf8.RuneCountInString(externalID) > 128 {
		return shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot exceed 128 characters")
	}
	first := p.ExternalID == nil
	p.ExternalID = &externalID
	p.Touch()
	if first {
		p.AddDomainEvent(NewProductImportedEvent(p))
	}
	return nil
}

// Rename updates the product title
func (p *Product) Rename(title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	p.Title = strings.TrimSpace(title)
	p.Touch()
	return nil
}

// SetPrice sets the published price and records a ProductPriceChanged
// event when the value actually moves.
func (p *Product) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if p.Price.Equal(price) {
		return nil
	}
	old := p.Price
	p.Price = price
	p.Touch()
	p.AddDomainEvent(NewProductPriceChangedEvent(p, old))
	return nil
}

// SetStock sets the aggregate stock; negative values are stored as zero
func (p *Product) SetStock(stock int64) {
	if stock < 0 {
		stock = 0
	}
	p.Stock = stock
	p.Touch()
}

// SetImages replaces the image URL list
func (p *Product) SetImages(images []string) {
	cleaned := make([]string, 0, len(images))
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			cleaned = append(cleaned, img)
		}
	}
	p.Images = cleaned
	p.Touch()
}

// SetVideoURL replaces the video URL
func (p *Product) SetVideoURL(url string) {
	p.VideoURL = strings.TrimSpace(url)
	p.Touch()
}

// SetCategory assigns a locally curated category
func (p *Product) SetCategory(categoryID *uuid.UUID) {
	p.CategoryID = categoryID
	p.Touch()
}

// MarkSynced closes a reconciliation pass: it stamps SyncedAt and bumps
// the version once per pass.
func (p *Product) MarkSynced(at time.Time) {
	p.SyncedAt = &at
	p.UpdatedAt = at
	p.IncrementVersion()
}

// HasExternalID reports whether the product is linked to a supplier product
func (p *Product) HasExternalID() bool {
	return p.ExternalID != nil && *p.ExternalID != ""
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Product title cannot be empty")
	}
	if utf8.RuneCountInString(title) > 255 {
		return shared.NewDomainError("INVALID_TITLE", "Product title cannot exceed 255 characters")
	}
	return nil
}
