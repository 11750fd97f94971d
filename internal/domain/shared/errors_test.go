package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "product abc not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("create product: %w", ErrAlreadyExists)
		assert.True(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("plain errors do not match", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("boom"), ErrNotFound))
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "INVALID_INPUT", ErrorCode(fmt.Errorf("wrap: %w", ErrInvalidInput)))
	assert.Equal(t, "", ErrorCode(errors.New("other")))
	assert.Equal(t, "", ErrorCode(nil))
}

func TestNewBaseAggregateRoot(t *testing.T) {
	root := NewBaseAggregateRoot()

	assert.Equal(t, 1, root.GetVersion())
	assert.NotEqual(t, root.GetID().String(), "00000000-0000-0000-0000-000000000000")
	assert.Empty(t, root.GetDomainEvents())

	evt := NewBaseDomainEvent("ThingHappened", "Thing", root.GetID())
	root.AddDomainEvent(&evt)
	root.IncrementVersion()

	assert.Equal(t, 2, root.GetVersion())
	assert.Len(t, root.GetDomainEvents(), 1)
	assert.Equal(t, "ThingHappened", root.GetDomainEvents()[0].EventType())

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}
