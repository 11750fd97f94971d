package integration

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByExternalID(ctx context.Context, externalID string) (*catalog.Product, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *catalog.Product, fields ...catalog.Field) error {
	args := m.Called(ctx, product, fields)
	return args.Error(0)
}

func (m *MockProductRepository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []catalog.Variant) error {
	args := m.Called(ctx, productID, variants)
	return args.Error(0)
}

func (m *MockProductRepository) FindVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

func (m *MockProductRepository) CountByExternalID(ctx context.Context, externalID string) (int64, error) {
	args := m.Called(ctx, externalID)
	return args.Get(0).(int64), args.Error(1)
}

// memoryProductRepository is a small stateful store enforcing the same
// uniqueness rules as the database
type memoryProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]catalog.Product
	variants map[uuid.UUID][]catalog.Variant
	updates  [][]catalog.Field
}

func newMemoryProductRepository() *memoryProductRepository {
	return &memoryProductRepository{
		products: make(map[uuid.UUID]catalog.Product),
		variants: make(map[uuid.UUID][]catalog.Variant),
	}
}

func (r *memoryProductRepository) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.ClearDomainEvents()
	return &p, nil
}

func (r *memoryProductRepository) FindByExternalID(_ context.Context, externalID string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ExternalID != nil && *p.ExternalID == externalID {
			p.ClearDomainEvents()
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryProductRepository) ExistsBySlug(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryProductRepository) Create(_ context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == product.Slug {
			return shared.ErrAlreadyExists
		}
		if p.ExternalID != nil && product.ExternalID != nil && *p.ExternalID == *product.ExternalID {
			return shared.ErrAlreadyExists
		}
	}
	r.products[product.ID] = *product
	return nil
}

func (r *memoryProductRepository) Update(_ context.Context, product *catalog.Product, fields ...catalog.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.ID]; !ok {
		return shared.ErrNotFound
	}
	r.products[product.ID] = *product
	r.updates = append(r.updates, fields)
	return nil
}

func (r *memoryProductRepository) ReplaceVariants(_ context.Context, productID uuid.UUID, variants []catalog.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[productID] = append([]catalog.Variant(nil), variants...)
	return nil
}

func (r *memoryProductRepository) FindVariants(_ context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]catalog.Variant(nil), r.variants[productID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memoryProductRepository) CountByExternalID(_ context.Context, externalID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.products {
		if p.ExternalID != nil && *p.ExternalID == externalID {
			n++
		}
	}
	return n, nil
}

type capturingPublisher struct {
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var (
	_ catalog.ProductRepository = (*MockProductRepository)(nil)
	_ catalog.ProductRepository = (*memoryProductRepository)(nil)
)
