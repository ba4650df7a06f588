package orders_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	"github.com/acmedemos/choreo/pkg/choreo/cache"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
	"github.com/acmedemos/choreo/pkg/choreo/services/orders"
	"github.com/acmedemos/choreo/pkg/choreo/topic"
)

type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	bodies []any
}

func (p *capturingPublisher) Publish(_ context.Context, pattern string, params map[string]any, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic.Render(pattern, params))
	p.bodies = append(p.bodies, payload)
	return nil
}

func (p *capturingPublisher) published() ([]string, []any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([]any(nil), p.bodies...)
}

func newService(t *testing.T, cfg orders.Config) (*orders.Service, *cache.Cache[model.Order], *capturingPublisher) {
	t.Helper()
	orderCache := cache.New[model.Order]()
	pub := &capturingPublisher{}
	sched := scheduler.New()
	t.Cleanup(sched.Stop)
	return orders.New(cfg, orderCache, pub, sched, nil), orderCache, pub
}

func TestCreateBasket(t *testing.T) {
	svc, orderCache, pub := newService(t, orders.Config{CreateDelay: 20 * time.Millisecond})

	order := svc.CreateBasket(context.Background())

	_, err := uuid.Parse(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderInitialized, order.State)
	assert.NotEmpty(t, order.Product)
	assert.GreaterOrEqual(t, order.Quantity, 1)
	assert.LessOrEqual(t, order.Quantity, 5)
	assert.Len(t, order.DeliveryAddress.PostalCode, 6)
	assert.GreaterOrEqual(t, order.PaymentInfo.CVV, 100)
	assert.LessOrEqual(t, order.PaymentInfo.CVV, 999)

	topics, _ := pub.published()
	assert.Empty(t, topics, "nothing announced while the basket is open")

	// After the delay the order is CREATED and announced.
	assert.Eventually(t, func() bool {
		cached, _ := orderCache.Get(order.ID)
		return cached.State == model.OrderCreated
	}, time.Second, 5*time.Millisecond)

	topics, bodies := pub.published()
	require.Len(t, topics, 1)
	assert.Equal(t, "acmestore/order/created/v1/"+order.DeliveryAddress.Country+"/"+order.ID, topics[0])

	created, ok := bodies[0].(model.Order)
	require.True(t, ok)
	assert.Equal(t, model.OrderCreated, created.State)
}

func TestUpdateHandlersAdvanceState(t *testing.T) {
	svc, orderCache, _ := newService(t, orders.Config{})

	order := model.Order{ID: "order-1", State: model.OrderCreated}
	orderCache.Put(order.ID, order)

	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), event.Envelope{}, model.Order{ID: "order-1"}))
	cached, _ := orderCache.Get("order-1")
	assert.Equal(t, model.OrderValidated, cached.State)

	require.NoError(t, svc.HandlePaymentUpdated(context.Background(), event.Envelope{}, model.Payment{OrderID: "order-1"}))
	cached, _ = orderCache.Get("order-1")
	assert.Equal(t, model.OrderPaymentProcessed, cached.State)

	require.NoError(t, svc.HandleShipmentUpdated(context.Background(), event.Envelope{}, model.Shipping{OrderID: "order-1"}))
	cached, _ = orderCache.Get("order-1")
	assert.Equal(t, model.OrderShipped, cached.State)
}

func TestUnknownOrderUpdateIsDropped(t *testing.T) {
	svc, orderCache, _ := newService(t, orders.Config{})

	// No error: the event is acknowledged and dropped.
	require.NoError(t, svc.HandlePaymentUpdated(context.Background(), event.Envelope{}, model.Payment{OrderID: "ghost"}))
	assert.Equal(t, 0, orderCache.Len())
}

func TestUpdateRoutesDispatchByTopic(t *testing.T) {
	svc, orderCache, _ := newService(t, orders.Config{})
	orderCache.Put("order-1", model.Order{ID: "order-1", State: model.OrderCreated})

	p := event.Dispatch(svc.UpdateRoutes())

	confirm, err := json.Marshal(model.Order{ID: "order-1"})
	require.NoError(t, err)
	require.NoError(t, p(context.Background(), &broker.Message{
		Topic:   "acmestore/order/confirmed/v1/Germany/order-1",
		Payload: confirm,
	}))
	cached, _ := orderCache.Get("order-1")
	assert.Equal(t, model.OrderValidated, cached.State)

	payment, err := json.Marshal(model.Payment{ID: "p-1", OrderID: "order-1"})
	require.NoError(t, err)
	require.NoError(t, p(context.Background(), &broker.Message{
		Topic:   "acmestore/payment/updated/v1/Germany/p-1",
		Payload: payment,
	}))
	cached, _ = orderCache.Get("order-1")
	assert.Equal(t, model.OrderPaymentProcessed, cached.State)

	shipment, err := json.Marshal(model.Shipping{ID: "s-1", OrderID: "order-1"})
	require.NoError(t, err)
	require.NoError(t, p(context.Background(), &broker.Message{
		Topic:   "acmestore/shipment/updated/v1/s-1/order-1",
		Payload: shipment,
	}))
	cached, _ = orderCache.Get("order-1")
	assert.Equal(t, model.OrderShipped, cached.State)

	// A topic no route covers is a permanent dispatch failure.
	err = p(context.Background(), &broker.Message{Topic: "acmestore/stock/reserved/v1/x/y/z", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, event.ErrUnroutable)
}

func TestSubscriptions(t *testing.T) {
	svc, _, _ := newService(t, orders.Config{})
	assert.Equal(t, []string{
		"acmestore/order/confirmed/v1/>",
		"acmestore/payment/updated/v1/>",
		"acmestore/shipment/updated/v1/>",
	}, svc.Subscriptions())
}
