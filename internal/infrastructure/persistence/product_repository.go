package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/shared"
	"github.com/storefront/landedcost/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// variantBatchSize bounds one INSERT of the variant replacement
const variantBatchSize = 100

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds the product linked to a supplier product key
func (r *GormProductRepository) FindByExternalID(ctx context.Context, externalID string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// ExistsBySlug checks if a product with the given slug exists
func (r *GormProductRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("slug = ?", slug).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Update writes the listed fields plus updated_at and version
func (r *GormProductRepository) Update(ctx context.Context, product *catalog.Product, fields ...catalog.Field) error {
	model := models.ProductModelFromDomain(product)
	values := map[string]any{
		"updated_at": model.UpdatedAt,
		"version":    model.Version,
	}
	for _, f := range fields {
		switch f {
		case catalog.FieldTitle:
			values["title"] = model.Title
		case catalog.FieldSlug:
			values["slug"] = model.Slug
		case catalog.FieldPrice:
			values["price"] = model.Price
		case catalog.FieldStock:
			values["stock"] = model.Stock
		case catalog.FieldExternalID:
			values["external_id"] = model.ExternalID
		case catalog.FieldImages:
			values["images"] = model.Images
		case catalog.FieldVideoURL:
			values["video_url"] = model.VideoURL
		case catalog.FieldCategory:
			values["category_id"] = model.CategoryID
		case catalog.FieldSyncedAt:
			values["synced_at"] = model.SyncedAt
		default:
			return shared.NewDomainError("INVALID_FIELD", fmt.Sprintf("unknown product field %q", f))
		}
	}

	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", product.ID).
		Updates(values)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceVariants deletes every variant of the product and inserts the new
// set in one transaction
func (r *GormProductRepository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []catalog.Variant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.VariantModel{}).Error; err != nil {
			return err
		}
		if len(variants) == 0 {
			return nil
		}
		rows := make([]*models.VariantModel, 0, len(variants))
		for _, v := range variants {
			v.ProductID = productID
			rows = append(rows, models.VariantModelFromDomain(v))
		}
		if err := tx.CreateInBatches(rows, variantBatchSize).Error; err != nil {
			return translateError(err)
		}
		return nil
	})
}

// FindVariants lists the variants of a product in position order
func (r *GormProductRepository) FindVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	var rows []models.VariantModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	variants := make([]catalog.Variant, 0, len(rows))
	for i := range rows {
		variants = append(variants, rows[i].ToDomain())
	}
	return variants, nil
}

// CountByExternalID counts products linked to externalID
func (r *GormProductRepository) CountByExternalID(ctx context.Context, externalID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("external_id = ?", externalID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// translateError maps GORM errors onto domain errors, keeping the driver
// message for logs
func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", shared.ErrAlreadyExists, err)
	default:
		return err
	}
}

// isUniqueViolation recognizes driver messages that TranslateError leaves
// untranslated
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
