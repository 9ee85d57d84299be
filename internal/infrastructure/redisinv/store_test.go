package redisinv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client)
}

func TestStore_SeedAndGet(t *testing.T) {
	s := setupStore(t)

	require.NoError(t, s.Seed(context.Background(), []domain.Variant{
		{ID: "v1", ProductID: "p1", Size: "L", UnitPrice: 129900, Stock: 4},
	}))

	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "p1", v.ProductID)
	assert.Equal(t, "L", v.Size)
	assert.Equal(t, int64(129900), v.UnitPrice)
	assert.Equal(t, 4, v.Stock)

	_, err = s.GetVariant(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DecrementIfAvailable(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Seed(context.Background(), []domain.Variant{{ID: "v1", Stock: 3}}))

	require.NoError(t, s.DecrementIfAvailable(context.Background(), "v1", 2))

	err := s.DecrementIfAvailable(context.Background(), "v1", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Stock)

	assert.ErrorIs(t, s.DecrementIfAvailable(context.Background(), "missing", 1), domain.ErrNotFound)
	assert.ErrorIs(t, s.DecrementIfAvailable(context.Background(), "v1", 0), domain.ErrInvalidQuantity)
}

func TestStore_DecrementMany(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Seed(context.Background(), []domain.Variant{
		{ID: "v1", Stock: 5},
		{ID: "v2", Stock: 1},
	}))

	err := s.DecrementMany(context.Background(), []domain.Line{
		{VariantID: "v1", Quantity: 2},
		{VariantID: "v2", Quantity: 3},
	})

	var shortfall *domain.ShortfallError
	require.ErrorAs(t, err, &shortfall)
	require.Len(t, shortfall.Items, 1)
	assert.Equal(t, domain.Shortfall{VariantID: "v2", Requested: 3, Available: 1}, shortfall.Items[0])

	// Neither counter moved.
	v1, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 5, v1.Stock)
	v2, err := s.GetVariant(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, 1, v2.Stock)

	require.NoError(t, s.DecrementMany(context.Background(), []domain.Line{
		{VariantID: "v1", Quantity: 2},
		{VariantID: "v2", Quantity: 1},
	}))
	v1, err = s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 3, v1.Stock)
	v2, err = s.GetVariant(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, 0, v2.Stock)
}

func TestStore_Increment(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Seed(context.Background(), []domain.Variant{{ID: "v1", Stock: 0}}))

	require.NoError(t, s.Increment(context.Background(), "v1", 7))
	v, err := s.GetVariant(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 7, v.Stock)

	assert.ErrorIs(t, s.Increment(context.Background(), "missing", 1), domain.ErrNotFound)
}

func TestStore_SeedRejectsNegativeStock(t *testing.T) {
	s := setupStore(t)
	err := s.Seed(context.Background(), []domain.Variant{{ID: "v1", Stock: -2}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
