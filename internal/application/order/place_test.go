package order

import (
	"context"
	"testing"

	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
	dompayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t, standardVariant())

	result := f.placeOrder(t, "key-1")

	assert.Equal(t, int64(99800), result.Amount)
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, "rzp_"+result.OrderID, result.GatewayOrderID)
	assert.Equal(t, domain.StatusCreated, result.Status)
	assert.Equal(t, domain.PaymentPending, result.PaymentStatus)

	// Stock was decremented eagerly at placement.
	assert.Equal(t, 3, f.stockOf(t, "v1"))

	stored := f.orderByID(t, result.OrderID)
	assert.Equal(t, result.GatewayOrderID, stored.GatewayOrderID)
	assert.Equal(t, "key-1", stored.IdempotencyKey)
}

func TestPlaceOrder_OutOfStock(t *testing.T) {
	f := newFixture(t, dominv.Variant{ID: "v1", UnitPrice: 49900, Stock: 1})

	_, err := f.place.Execute(context.Background(), PlaceOrderInput{
		PaymentMethod: "razorpay",
		Customer:      domain.Customer{Phone: "9000000001"},
		Lines:         []LineInput{{VariantID: "v1", Quantity: 2, UnitPrice: 49900}},
	})

	var shortfall *dominv.ShortfallError
	require.ErrorAs(t, err, &shortfall)
	require.Len(t, shortfall.Items, 1)
	assert.Equal(t, dominv.Shortfall{VariantID: "v1", Requested: 2, Available: 1}, shortfall.Items[0])

	// No order exists and stock is untouched.
	list, lerr := f.orders.List(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, list)
	assert.Equal(t, 1, f.stockOf(t, "v1"))
	assert.Zero(t, f.gateway.callCount())
}

func TestPlaceOrder_PriceMismatch(t *testing.T) {
	f := newFixture(t, standardVariant())

	_, err := f.place.Execute(context.Background(), PlaceOrderInput{
		PaymentMethod: "razorpay",
		Customer:      domain.Customer{Phone: "9000000001"},
		Lines:         []LineInput{{VariantID: "v1", Quantity: 1, UnitPrice: 39900}},
	})

	assert.ErrorIs(t, err, ErrPriceMismatch)
	assert.Equal(t, 5, f.stockOf(t, "v1"))
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture(t, standardVariant())

	cases := map[string]PlaceOrderInput{
		"empty cart": {
			Customer: domain.Customer{Phone: "9000000001"},
		},
		"missing phone": {
			Lines: []LineInput{{VariantID: "v1", Quantity: 1, UnitPrice: 49900}},
		},
		"zero quantity": {
			Customer: domain.Customer{Phone: "9000000001"},
			Lines:    []LineInput{{VariantID: "v1", Quantity: 0, UnitPrice: 49900}},
		},
		"unknown variant": {
			Customer: domain.Customer{Phone: "9000000001"},
			Lines:    []LineInput{{VariantID: "ghost", Quantity: 1, UnitPrice: 49900}},
		},
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.place.Execute(context.Background(), input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 5, f.stockOf(t, "v1"))
}

func TestPlaceOrder_IdempotentReplay(t *testing.T) {
	f := newFixture(t, standardVariant())

	first := f.placeOrder(t, "key-1")
	second := f.placeOrder(t, "key-1")

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)

	// The replay decrements nothing and opens no new intent.
	assert.Equal(t, 3, f.stockOf(t, "v1"))
	assert.Equal(t, 1, f.gateway.callCount())
}

func TestPlaceOrder_GatewayFailureCompensates(t *testing.T) {
	f := newFixture(t, standardVariant())
	f.gateway.failWith = dompayment.ErrGatewayUnavailable

	_, err := f.place.Execute(context.Background(), PlaceOrderInput{
		PaymentMethod: "razorpay",
		Customer:      domain.Customer{Phone: "9000000001"},
		Lines:         []LineInput{{VariantID: "v1", Quantity: 2, UnitPrice: 49900}},
	})
	require.ErrorIs(t, err, dompayment.ErrGatewayUnavailable)

	// Stock was restored and the order parked in its terminal failed state.
	assert.Equal(t, 5, f.stockOf(t, "v1"))

	list, lerr := f.orders.List(context.Background())
	require.NoError(t, lerr)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PaymentFailed, list[0].PaymentStatus)
	assert.Equal(t, domain.StatusCancelled, list[0].Status)
}

func TestPlaceOrder_MultiLineTotal(t *testing.T) {
	f := newFixture(t,
		dominv.Variant{ID: "v1", UnitPrice: 49900, Stock: 5},
		dominv.Variant{ID: "v2", UnitPrice: 19900, Stock: 5},
	)

	result, err := f.place.Execute(context.Background(), PlaceOrderInput{
		PaymentMethod: "razorpay",
		Customer:      domain.Customer{Phone: "9000000001"},
		Lines: []LineInput{
			{VariantID: "v1", Quantity: 2, UnitPrice: 49900},
			{VariantID: "v2", Quantity: 3, UnitPrice: 19900},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2*49900+3*19900), result.Amount)
	assert.Equal(t, 3, f.stockOf(t, "v1"))
	assert.Equal(t, 2, f.stockOf(t, "v2"))
}
