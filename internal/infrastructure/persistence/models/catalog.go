// Package models contains the GORM models of the catalog store. Domain
// entities stay free of ORM tags; repositories convert at the boundary.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"gorm.io/datatypes"
)

// ProductModel is the persistence model for the Product aggregate
type ProductModel struct {
	AggregateModel
	ExternalID *string                     `gorm:"type:varchar(128);uniqueIndex:idx_catalog_products_external_id"`
	Slug       string                      `gorm:"type:varchar(80);not null;uniqueIndex:idx_catalog_products_slug"`
	Title      string                      `gorm:"type:varchar(255);not null"`
	Price      decimal.Decimal             `gorm:"type:decimal(18,4);not null;default:0"`
	Stock      int64                       `gorm:"not null;default:0"`
	Images     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	VideoURL   string                      `gorm:"type:varchar(1024)"`
	CategoryID *uuid.UUID                  `gorm:"type:uuid;index"`
	SyncedAt   *time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "catalog_products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ExternalID:        m.ExternalID,
		Slug:              m.Slug,
		Title:             m.Title,
		Price:             m.Price,
		Stock:             m.Stock,
		Images:            imagesOrEmpty(m.Images),
		VideoURL:          m.VideoURL,
		CategoryID:        m.CategoryID,
		SyncedAt:          m.SyncedAt,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.ExternalID = p.ExternalID
	m.Slug = p.Slug
	m.Title = p.Title
	m.Price = p.Price
	m.Stock = p.Stock
	m.Images = datatypes.JSONSlice[string](imagesOrEmpty(p.Images))
	m.VideoURL = p.VideoURL
	m.CategoryID = p.CategoryID
	m.SyncedAt = p.SyncedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// imagesOrEmpty keeps a stored JSON null from surfacing as a nil list
func imagesOrEmpty(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

// VariantModel is the persistence model for a product Variant
type VariantModel struct {
	BaseModel
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_catalog_variants_product_position,priority:1"`
	OptionLabel string          `gorm:"type:varchar(200);not null;default:''"`
	ExternalSKU string          `gorm:"type:varchar(128)"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Stock       int64           `gorm:"not null;default:0"`
	Position    int             `gorm:"not null;default:0;index:idx_catalog_variants_product_position,priority:2"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "catalog_variants"
}

// ToDomain converts the persistence model to a domain Variant
func (m *VariantModel) ToDomain() catalog.Variant {
	return catalog.Variant{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProductID:   m.ProductID,
		OptionLabel: m.OptionLabel,
		ExternalSKU: m.ExternalSKU,
		Price:       m.Price,
		Stock:       m.Stock,
		Position:    m.Position,
	}
}

// VariantModelFromDomain creates a new persistence model from a domain Variant
func VariantModelFromDomain(v catalog.Variant) *VariantModel {
	m := &VariantModel{
		ProductID:   v.ProductID,
		OptionLabel: v.OptionLabel,
		ExternalSKU: v.ExternalSKU,
		Price:       v.Price,
		Stock:       v.Stock,
		Position:    v.Position,
	}
	m.FromDomainBaseEntity(v.BaseEntity)
	return m
}
