package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/storefront/landedcost/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	seen   []string
	err    error
	panics bool
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	h.seen = append(h.seen, e.EventType())
	h.mu.Unlock()
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func newEvent(eventType string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, "Product", uuid.New())
	return &e
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	imported := &recordingHandler{types: []string{"ProductImported"}}
	all := &recordingHandler{}

	bus.Subscribe(imported)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(), newEvent("ProductImported"), newEvent("ProductPriceChanged"))
	assert.NoError(t, err)

	assert.Equal(t, []string{"ProductImported"}, imported.received())
	assert.Equal(t, []string{"ProductImported", "ProductPriceChanged"}, all.received())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{"ProductImported"}}

	bus.Subscribe(h, "ProductPriceChanged")
	_ = bus.Publish(context.Background(), newEvent("ProductImported"), newEvent("ProductPriceChanged"))

	assert.Equal(t, []string{"ProductPriceChanged"}, h.received())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := &recordingHandler{types: []string{"ProductImported"}, err: errors.New("audit sink down")}
	panicking := &recordingHandler{types: []string{"ProductImported"}, panics: true}
	healthy := &recordingHandler{types: []string{"ProductImported"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newEvent("ProductImported"))
	assert.NoError(t, err)

	assert.Len(t, healthy.received(), 1)
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{"ProductImported"}}

	bus.Subscribe(h)
	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), newEvent("ProductImported"))

	assert.Empty(t, h.received())
}
