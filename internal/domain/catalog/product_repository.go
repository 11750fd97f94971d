package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository defines the catalog store used by reconciliation
type ProductRepository interface {
	// FindByID finds a product by its local ID.
	// Returns shared.ErrNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByExternalID finds the product linked to a supplier product key.
	// Returns shared.ErrNotFound when absent.
	FindByExternalID(ctx context.Context, externalID string) (*Product, error)

	// ExistsBySlug checks whether any product already uses slug
	ExistsBySlug(ctx context.Context, slug string) (bool, error)

	// Create inserts a new product. A uniqueness violation on slug or
	// external ID is reported as shared.ErrAlreadyExists.
	Create(ctx context.Context, product *Product) error

	// Update writes the listed fields of an existing product. Updated-at and
	// version are always written.
	Update(ctx context.Context, product *Product, fields ...Field) error

	// ReplaceVariants deletes every variant of productID and inserts
	// variants in a single transaction. An empty slice leaves zero rows.
	ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []Variant) error

	// FindVariants lists the variants of a product in position order
	FindVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error)

	// CountByExternalID counts products linked to externalID
	CountByExternalID(ctx context.Context, externalID string) (int64, error)
}
