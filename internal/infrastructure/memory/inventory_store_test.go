package memory

import (
	"context"
	"sync"
	"testing"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, variants ...domain.Variant) *InventoryStore {
	t.Helper()
	s := NewInventoryStore()
	require.NoError(t, s.Seed(context.Background(), variants))
	return s
}

func TestInventoryStore_GetVariant(t *testing.T) {
	s := seededStore(t, domain.Variant{ID: "v1", ProductID: "p1", Size: "M", UnitPrice: 49900, Stock: 3})

	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Stock)
	assert.Equal(t, int64(49900), v.UnitPrice)

	_, err = s.GetVariant(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryStore_DecrementIfAvailable(t *testing.T) {
	s := seededStore(t, domain.Variant{ID: "v1", Stock: 5})

	require.NoError(t, s.DecrementIfAvailable(context.Background(), "v1", 3))
	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Stock)

	err = s.DecrementIfAvailable(context.Background(), "v1", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Stock untouched by the failed decrement.
	v, err = s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Stock)

	assert.ErrorIs(t, s.DecrementIfAvailable(context.Background(), "v1", 0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, s.DecrementIfAvailable(context.Background(), "missing", 1), domain.ErrNotFound)
}

func TestInventoryStore_DecrementMany_AllOrNothing(t *testing.T) {
	s := seededStore(t,
		domain.Variant{ID: "v1", Stock: 5},
		domain.Variant{ID: "v2", Stock: 1},
		domain.Variant{ID: "v3", Stock: 0},
	)

	err := s.DecrementMany(context.Background(), []domain.Line{
		{VariantID: "v1", Quantity: 2},
		{VariantID: "v2", Quantity: 3},
		{VariantID: "v3", Quantity: 1},
	})

	var shortfall *domain.ShortfallError
	require.ErrorAs(t, err, &shortfall)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Every insufficient variant is reported, not just the first.
	require.Len(t, shortfall.Items, 2)
	assert.Equal(t, domain.Shortfall{VariantID: "v2", Requested: 3, Available: 1}, shortfall.Items[0])
	assert.Equal(t, domain.Shortfall{VariantID: "v3", Requested: 1, Available: 0}, shortfall.Items[1])

	// Nothing was decremented, including the satisfiable line.
	for id, want := range map[string]int{"v1": 5, "v2": 1, "v3": 0} {
		v, gerr := s.GetVariant(context.Background(), id)
		require.NoError(t, gerr)
		assert.Equal(t, want, v.Stock, "variant %s", id)
	}
}

func TestInventoryStore_DecrementMany_Success(t *testing.T) {
	s := seededStore(t,
		domain.Variant{ID: "v1", Stock: 5},
		domain.Variant{ID: "v2", Stock: 2},
	)

	require.NoError(t, s.DecrementMany(context.Background(), []domain.Line{
		{VariantID: "v1", Quantity: 3},
		{VariantID: "v2", Quantity: 2},
	}))

	v1, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v1.Stock)
	v2, err := s.GetVariant(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, 0, v2.Stock)
}

func TestInventoryStore_ConcurrentDecrement(t *testing.T) {
	const stock = 5
	const attempts = 20

	s := seededStore(t, domain.Variant{ID: "v1", Stock: stock})

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.DecrementIfAvailable(context.Background(), "v1", 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, stock, succeeded)

	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)
}

func TestInventoryStore_Increment(t *testing.T) {
	s := seededStore(t, domain.Variant{ID: "v1", Stock: 1})

	require.NoError(t, s.Increment(context.Background(), "v1", 4))
	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 5, v.Stock)

	assert.ErrorIs(t, s.Increment(context.Background(), "missing", 1), domain.ErrNotFound)
	assert.ErrorIs(t, s.Increment(context.Background(), "v1", -1), domain.ErrInvalidQuantity)
}

func TestInventoryStore_SeedOverwrites(t *testing.T) {
	s := seededStore(t, domain.Variant{ID: "v1", Stock: 2})

	require.NoError(t, s.Seed(context.Background(), []domain.Variant{{ID: "v1", Stock: 10}}))
	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 10, v.Stock)

	err = s.Seed(context.Background(), []domain.Variant{{ID: "v2", Stock: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
