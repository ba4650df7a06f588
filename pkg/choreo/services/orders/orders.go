// Package orders implements the order service: it owns the
// authoritative order cache, creates synthetic baskets, announces
// OrderCreated, and advances order state from downstream events.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acmedemos/choreo/pkg/choreo/cache"
	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
)

// Default topic templates, subscriptions, and timings.
const (
	DefaultOrderCreatedTopic = "acmestore/order/created/v1/{regionId}/{orderId}"
	DefaultCreateDelay       = 15 * time.Second

	DefaultOrderConfirmedSubscription  = "acmestore/order/confirmed/v1/>"
	DefaultPaymentUpdatedSubscription  = "acmestore/payment/updated/v1/>"
	DefaultShipmentUpdatedSubscription = "acmestore/shipment/updated/v1/>"
)

// Synthetic basket content pools.
var (
	products = []string{
		"Hoodie", "Leather Jacket", "Spider-man lego set",
		"Iphone 15 Pro Max", "Apple watch Ultra 2", "Macbook",
	}
	streets   = []string{"Hauptstrasse 12", "Baker Street 221b", "Via Roma 4", "Gran Via 77"}
	cities    = []string{"Berlin", "London", "Milan", "Madrid"}
	regions   = []string{"BE", "LDN", "LOM", "MAD"}
	countries = []string{"Germany", "UK", "Italy", "Spain"}
)

// Config carries the service's topic template, update subscriptions,
// and timings.
type Config struct {
	// OrderCreatedTopic is the template for OrderCreated events.
	OrderCreatedTopic string

	// CreateDelay is how long a basket stays INITIALIZED before the
	// order is created and announced.
	CreateDelay time.Duration

	// Subscriptions for the order-updates queue, used to route inbound
	// updates to their typed handlers.
	OrderConfirmedSubscription  string
	PaymentUpdatedSubscription  string
	ShipmentUpdatedSubscription string
}

func (c *Config) applyDefaults() {
	if c.OrderCreatedTopic == "" {
		c.OrderCreatedTopic = DefaultOrderCreatedTopic
	}
	if c.CreateDelay <= 0 {
		c.CreateDelay = DefaultCreateDelay
	}
	if c.OrderConfirmedSubscription == "" {
		c.OrderConfirmedSubscription = DefaultOrderConfirmedSubscription
	}
	if c.PaymentUpdatedSubscription == "" {
		c.PaymentUpdatedSubscription = DefaultPaymentUpdatedSubscription
	}
	if c.ShipmentUpdatedSubscription == "" {
		c.ShipmentUpdatedSubscription = DefaultShipmentUpdatedSubscription
	}
}

// Service is the order service.
type Service struct {
	cfg       Config
	orders    *cache.Cache[model.Order]
	publisher event.Publisher
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New creates the service with injected cache, publisher, and scheduler.
func New(cfg Config, orders *cache.Cache[model.Order], publisher event.Publisher, sched *scheduler.Scheduler, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		orders:    orders,
		publisher: publisher,
		scheduler: sched,
		logger:    logger,
	}
}

// Orders exposes the cache for status views.
func (s *Service) Orders() *cache.Cache[model.Order] {
	return s.orders
}

// CreateBasket generates a synthetic order, caches it as INITIALIZED,
// and schedules the OrderCreated announcement.
func (s *Service) CreateBasket(ctx context.Context) model.Order {
	order := s.newBasketOrder()
	s.orders.Put(order.ID, order)

	s.scheduler.Schedule(s.cfg.CreateDelay, func() {
		s.processOrderCreation(context.Background(), order.ID)
	})

	s.logger.Info("basket created",
		slog.String("orderId", order.ID),
		slog.String("product", order.Product))
	return order
}

// processOrderCreation transitions the order to CREATED and announces it.
func (s *Service) processOrderCreation(ctx context.Context, orderID string) {
	order, ok := s.orders.Get(orderID)
	if !ok {
		s.logger.Warn("creating unknown order, ignoring", slog.String("orderId", orderID))
		return
	}

	order.State = model.OrderCreated
	s.orders.Put(orderID, order)

	err := s.publisher.Publish(ctx, s.cfg.OrderCreatedTopic, map[string]any{
		"regionId": order.DeliveryAddress.Country,
		"orderId":  order.ID,
	}, order)
	if err != nil {
		s.logger.Error("order created publish failed",
			slog.String("orderId", order.ID),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("order created", slog.String("orderId", order.ID))
}

// HandleOrderConfirmed advances the order to VALIDATED.
func (s *Service) HandleOrderConfirmed(_ context.Context, _ event.Envelope, confirmed model.Order) error {
	return s.advance(confirmed.ID, model.OrderValidated)
}

// HandlePaymentUpdated advances the order to PAYMENT_PROCESSED.
func (s *Service) HandlePaymentUpdated(_ context.Context, _ event.Envelope, payment model.Payment) error {
	return s.advance(payment.OrderID, model.OrderPaymentProcessed)
}

// HandleShipmentUpdated advances the order to SHIPPED.
func (s *Service) HandleShipmentUpdated(_ context.Context, _ event.Envelope, shipment model.Shipping) error {
	return s.advance(shipment.OrderID, model.OrderShipped)
}

// advance applies a state transition to the cached order. Updates for
// unknown order IDs are logged and dropped: the event is acknowledged
// because redelivery cannot make the order appear.
func (s *Service) advance(orderID string, state model.OrderState) error {
	order, ok := s.orders.Get(orderID)
	if !ok {
		s.logger.Warn("update for unknown order, ignoring",
			slog.String("orderId", orderID),
			slog.String("state", string(state)))
		return nil
	}

	order.State = state
	s.orders.Put(orderID, order)

	s.logger.Info("order state advanced",
		slog.String("orderId", orderID),
		slog.String("state", string(state)))
	return nil
}

// UpdateRoutes returns the typed routes for the order-updates queue.
// Dispatch is by configured subscription, not by substring sniffing of
// the inbound topic.
func (s *Service) UpdateRoutes() []event.Route {
	return []event.Route{
		{
			Subscription: s.cfg.OrderConfirmedSubscription,
			Processor: event.Typed("order.confirmed", "orders",
				func(o model.Order) string { return o.ID },
				s.HandleOrderConfirmed),
		},
		{
			Subscription: s.cfg.PaymentUpdatedSubscription,
			Processor: event.Typed("payment.updated", "orders",
				func(p model.Payment) string { return p.OrderID },
				s.HandlePaymentUpdated),
		},
		{
			Subscription: s.cfg.ShipmentUpdatedSubscription,
			Processor: event.Typed("shipment.updated", "orders",
				func(sh model.Shipping) string { return sh.OrderID },
				s.HandleShipmentUpdated),
		},
	}
}

// Subscriptions returns the topic subscriptions for the order-updates
// queue.
func (s *Service) Subscriptions() []string {
	return []string{
		s.cfg.OrderConfirmedSubscription,
		s.cfg.PaymentUpdatedSubscription,
		s.cfg.ShipmentUpdatedSubscription,
	}
}

func (s *Service) newBasketOrder() model.Order {
	i := decision.IntBetween(0, len(cities)-1)
	return model.Order{
		ID:         uuid.NewString(),
		CustomerID: uuid.NewString(),
		State:      model.OrderInitialized,
		Product:    decision.OneOf(products),
		Quantity:   decision.IntBetween(1, 5),
		Price:      decision.Amount(),
		DeliveryAddress: model.DeliveryAddress{
			Street:     decision.OneOf(streets),
			City:       cities[i],
			State:      regions[i],
			PostalCode: postalCode(),
			Country:    countries[i],
		},
		PaymentInfo: model.PaymentInfo{
			CardNumber:     cardNumber(),
			ExpirationDate: futureExpiry(),
			CVV:            decision.IntBetween(100, 999),
		},
	}
}

// postalCode derives a 6-character alphanumeric code from a uuid.
func postalCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func cardNumber() string {
	return fmt.Sprintf("%04d-%04d-%04d-%04d",
		decision.IntBetween(1000, 9999), decision.IntBetween(0, 9999),
		decision.IntBetween(0, 9999), decision.IntBetween(0, 9999))
}

// futureExpiry returns a date one to five years out, as yyyy-mm-dd.
func futureExpiry() string {
	return time.Now().AddDate(decision.IntBetween(1, 5), 0, 0).Format("2006-01-02")
}
