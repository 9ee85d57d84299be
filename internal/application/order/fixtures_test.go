package order

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	dominv "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	domain "github.com/aranya-atelier/checkout-core/internal/domain/order"
	dompayment "github.com/aranya-atelier/checkout-core/internal/domain/payment"
	"github.com/aranya-atelier/checkout-core/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
)

const testSignature = "sig-valid"

// fakeGateway stands in for the payment provider. CreateIntent derives the
// gateway order id from the receipt; VerifyPaymentSignature accepts exactly
// testSignature.
type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	failWith error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (*dompayment.Intent, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failWith != nil {
		return nil, g.failWith
	}
	return &dompayment.Intent{
		GatewayOrderID: "rzp_" + receipt,
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return gatewayOrderID != "" && gatewayPaymentID != "" && signature == testSignature
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeCodec verifies against testSignature and decodes a flat test envelope.
type fakeCodec struct{}

type fakeEnvelope struct {
	Event     string `json:"event"`
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
}

func (fakeCodec) Verify(rawBody []byte, signature string) bool {
	return len(rawBody) > 0 && signature == testSignature
}

func (fakeCodec) Decode(rawBody []byte) (*dompayment.WebhookEvent, error) {
	var env fakeEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, err
	}
	return &dompayment.WebhookEvent{
		Event:            env.Event,
		GatewayPaymentID: env.PaymentID,
		GatewayOrderID:   env.OrderID,
	}, nil
}

func webhookBody(t *testing.T, event, paymentID, orderID string) []byte {
	t.Helper()
	body, err := json.Marshal(fakeEnvelope{Event: event, PaymentID: paymentID, OrderID: orderID})
	require.NoError(t, err)
	return body
}

type seqIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *seqIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "order-" + strconv.Itoa(g.next)
}

type fixture struct {
	orders    *memory.OrderRepository
	stock     *memory.InventoryStore
	processed *memory.ProcessedEventStore
	gateway   *fakeGateway

	place   *PlaceOrderUseCase
	confirm *ConfirmPaymentUseCase
	webhook *ProcessWebhookUseCase
}

func newFixture(t *testing.T, variants ...dominv.Variant) *fixture {
	t.Helper()

	f := &fixture{
		orders:    memory.NewOrderRepository(),
		stock:     memory.NewInventoryStore(),
		processed: memory.NewProcessedEventStore(),
		gateway:   &fakeGateway{},
	}
	require.NoError(t, f.stock.Seed(context.Background(), variants))

	f.place = NewPlaceOrderUseCase(f.orders, f.stock, f.gateway, &seqIDGenerator{}, nil, "INR", nil)
	f.confirm = NewConfirmPaymentUseCase(f.orders, f.stock, f.gateway, nil, nil)
	f.webhook = NewProcessWebhookUseCase(f.orders, f.stock, fakeCodec{}, f.processed, nil, nil)
	return f
}

func (f *fixture) stockOf(t *testing.T, variantID string) int {
	t.Helper()
	v, err := f.stock.GetVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock
}

func (f *fixture) orderByID(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

// placeOrder runs a standard two-unit checkout against variant v1 and returns
// the pending order.
func (f *fixture) placeOrder(t *testing.T, idempotencyKey string) *PlaceOrderResult {
	t.Helper()
	result, err := f.place.Execute(context.Background(), PlaceOrderInput{
		IdempotencyKey: idempotencyKey,
		PaymentMethod:  "razorpay",
		Customer:       domain.Customer{Name: "Asha", Phone: "9000000001"},
		Lines:          []LineInput{{VariantID: "v1", Quantity: 2, UnitPrice: 49900}},
	})
	require.NoError(t, err)
	return result
}

func standardVariant() dominv.Variant {
	return dominv.Variant{ID: "v1", ProductID: "p1", Size: "M", UnitPrice: 49900, Stock: 5}
}
