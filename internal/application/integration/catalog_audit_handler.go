package integration

import (
	"context"
	"fmt"

	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/shared"
	"go.uber.org/zap"
)

// CatalogAuditHandler logs product imports and price changes so operators
// can review what a feed run published
type CatalogAuditHandler struct {
	logger *zap.Logger
}

// NewCatalogAuditHandler creates a new CatalogAuditHandler
func NewCatalogAuditHandler(logger *zap.Logger) *CatalogAuditHandler {
	return &CatalogAuditHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *CatalogAuditHandler) EventTypes() []string {
	return []string{catalog.EventTypeProductImported, catalog.EventTypeProductPriceChanged}
}

// Handle processes catalog events
func (h *CatalogAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *catalog.ProductImportedEvent:
		h.logger.Info("product imported",
			zap.String("product_id", e.ProductID.String()),
			zap.String("external_id", e.ExternalID),
			zap.String("slug", e.Slug),
		)
	case *catalog.ProductPriceChangedEvent:
		h.logger.Info("product price changed",
			zap.String("product_id", e.ProductID.String()),
			zap.String("old_price", e.OldPrice.StringFixed(2)),
			zap.String("new_price", e.NewPrice.StringFixed(2)),
		)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}
