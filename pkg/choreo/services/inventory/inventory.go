// Package inventory implements the inventory/fraud-check service: for
// every created order it reserves stock and confirms the order.
package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/inbox"
	"github.com/acmedemos/choreo/pkg/choreo/model"
)

// Default topic templates.
const (
	DefaultStockReservedTopic  = "acmestore/stock/reserved/v1/{orderId}/{productId}/{reservationId}"
	DefaultOrderConfirmedTopic = "acmestore/order/confirmed/v1/{regionId}/{orderId}"

	// DefaultReservationTTL is how long a stock reservation stays valid.
	DefaultReservationTTL = 30 * time.Minute
)

// Config carries the service's topic templates.
type Config struct {
	// StockReservedTopic is the template for StockReservation events.
	StockReservedTopic string

	// OrderConfirmedTopic is the template for OrderConfirmed events.
	OrderConfirmedTopic string

	// ReservationTTL sets the expiry window on reservations.
	ReservationTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.StockReservedTopic == "" {
		c.StockReservedTopic = DefaultStockReservedTopic
	}
	if c.OrderConfirmedTopic == "" {
		c.OrderConfirmedTopic = DefaultOrderConfirmedTopic
	}
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = DefaultReservationTTL
	}
}

// Service is the inventory service.
type Service struct {
	cfg       Config
	publisher event.Publisher
	processed inbox.Store
	logger    *slog.Logger
}

// New creates the service. The inbox keeps a redelivered OrderCreated
// from reserving stock twice; a nil store disables deduplication.
func New(cfg Config, publisher event.Publisher, processed inbox.Store, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if processed == nil {
		processed = inbox.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		publisher: publisher,
		processed: processed,
		logger:    logger,
	}
}

// HandleOrderCreated reserves stock for the order and confirms it. The
// fraud check always passes in the demo; the reservation and the
// confirmation are two separate events downstream consumers pick up
// independently.
func (s *Service) HandleOrderCreated(ctx context.Context, env event.Envelope, order model.Order) error {
	seen, err := s.processed.Seen(env.Type, env.CorrelationID)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Info("duplicate order created event, skipping",
			slog.String("orderId", order.ID))
		return nil
	}

	s.logger.Info("fraud check passed",
		slog.String("orderId", order.ID),
		slog.String("customerId", order.CustomerID))

	now := time.Now()
	reservation := model.StockReservation{
		ReservationID:   decision.ReservationNumber(),
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		ProductID:       order.Product,
		Quantity:        order.Quantity,
		ReservationTime: model.Timestamp(now),
		ExpiryTime:      model.Timestamp(now.Add(s.cfg.ReservationTTL)),
	}

	err = s.publisher.Publish(ctx, s.cfg.StockReservedTopic, map[string]any{
		"orderId":       reservation.OrderID,
		"productId":     reservation.ProductID,
		"reservationId": reservation.ReservationID,
	}, reservation)
	if err != nil {
		return err
	}

	confirmed := order
	confirmed.State = model.OrderValidated

	err = s.publisher.Publish(ctx, s.cfg.OrderConfirmedTopic, map[string]any{
		"regionId": confirmed.DeliveryAddress.Country,
		"orderId":  confirmed.ID,
	}, confirmed)
	if err != nil {
		return err
	}

	s.logger.Info("stock reserved and order confirmed",
		slog.String("orderId", order.ID),
		slog.Int("reservationId", reservation.ReservationID))

	// Marked only once both publishes landed: a redelivery after a
	// partial failure replays the whole handler, trading a duplicate
	// reservation for never losing the confirmation.
	_, err = s.processed.MarkProcessed(env.Type, env.CorrelationID)
	return err
}

// OrderCreatedProcessor wires HandleOrderCreated to the transport.
func (s *Service) OrderCreatedProcessor() event.Processor {
	return event.Typed("order.created", "inventory",
		func(o model.Order) string { return o.ID },
		s.HandleOrderCreated)
}
