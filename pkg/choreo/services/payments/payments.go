// Package payments implements the payment service: for every confirmed
// order it records a payment, then confirms it after a settlement
// delay. The gateway integration itself is stubbed out.
package payments

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/inbox"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
)

// Default topic templates and timings.
const (
	DefaultPaymentTopic = "acmestore/payment/{verb}/v1/{regionId}/{paymentId}"

	// DefaultOrderConfirmedSubscription matches confirmed orders from
	// every region.
	DefaultOrderConfirmedSubscription = "acmestore/order/confirmed/v1/>"

	// DefaultUpdateDelay is how long after creation a payment is
	// confirmed, emulating a separate gateway settlement round-trip.
	DefaultUpdateDelay = 15 * time.Second
)

// Payment event verbs.
const (
	verbCreated = "created"
	verbUpdated = "updated"
)

// Config carries the service's topic templates and timings.
type Config struct {
	// PaymentTopic is the template for payment events; the {verb}
	// placeholder takes created or updated.
	PaymentTopic string

	// OrderConfirmedSubscription is the inbound topic subscription.
	OrderConfirmedSubscription string

	// UpdateDelay is the settlement delay before the updated event.
	UpdateDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.PaymentTopic == "" {
		c.PaymentTopic = DefaultPaymentTopic
	}
	if c.OrderConfirmedSubscription == "" {
		c.OrderConfirmedSubscription = DefaultOrderConfirmedSubscription
	}
	if c.UpdateDelay <= 0 {
		c.UpdateDelay = DefaultUpdateDelay
	}
}

// Service is the payment service.
type Service struct {
	cfg       Config
	publisher event.Publisher
	scheduler *scheduler.Scheduler
	processed inbox.Store
	logger    *slog.Logger
}

// New creates the service. The inbox keeps a redelivered OrderConfirmed
// from charging twice; a nil store disables deduplication.
func New(cfg Config, publisher event.Publisher, sched *scheduler.Scheduler, processed inbox.Store, logger *slog.Logger) *Service {
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
		scheduler: sched,
		processed: processed,
		logger:    logger,
	}
}

// Subscriptions returns the inbound topic subscriptions for the
// service's queue.
func (s *Service) Subscriptions() []string {
	return []string{s.cfg.OrderConfirmedSubscription}
}

// HandleOrderConfirmed charges the card on file and publishes the
// created payment, then schedules the updated event that confirms
// settlement.
func (s *Service) HandleOrderConfirmed(ctx context.Context, env event.Envelope, order model.Order) error {
	seen, err := s.processed.Seen(env.Type, env.CorrelationID)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Info("duplicate order confirmed event, skipping",
			slog.String("orderId", order.ID))
		return nil
	}

	s.logger.Info("payment gateway integration processed",
		slog.String("orderId", order.ID),
		slog.String("customerId", order.CustomerID))

	if err := s.publishPayment(ctx, newPayment(order), order.DeliveryAddress.Country, verbCreated); err != nil {
		return err
	}

	s.scheduler.Schedule(s.cfg.UpdateDelay, func() {
		s.processPaymentUpdate(context.Background(), order)
	})

	// Marked only once every effect is in place: a failed publish above
	// leaves the message unmarked so the redelivery retries it.
	_, err = s.processed.MarkProcessed(env.Type, env.CorrelationID)
	return err
}

// processPaymentUpdate publishes the settlement confirmation. The
// payment carries a fresh identifier; downstream consumers correlate
// by orderId.
func (s *Service) processPaymentUpdate(ctx context.Context, order model.Order) {
	if err := s.publishPayment(ctx, newPayment(order), order.DeliveryAddress.Country, verbUpdated); err != nil {
		s.logger.Error("payment update publish failed",
			slog.String("orderId", order.ID),
			slog.Any("error", err))
	}
}

func newPayment(order model.Order) model.Payment {
	return model.Payment{
		ID:      strconv.Itoa(decision.PaymentNumber()),
		OrderID: order.ID,
		Ccy:     strconv.Itoa(order.PaymentInfo.CVV),
		Amount:  order.Price,
	}
}

func (s *Service) publishPayment(ctx context.Context, payment model.Payment, region, verb string) error {
	err := s.publisher.Publish(ctx, s.cfg.PaymentTopic, map[string]any{
		"verb":      verb,
		"regionId":  region,
		"paymentId": payment.ID,
	}, payment)
	if err != nil {
		return err
	}
	s.logger.Info("payment event published",
		slog.String("paymentId", payment.ID),
		slog.String("orderId", payment.OrderID),
		slog.String("verb", verb))
	return nil
}

// OrderConfirmedProcessor wires HandleOrderConfirmed to the transport.
func (s *Service) OrderConfirmedProcessor() event.Processor {
	return event.Typed("order.confirmed", "payments",
		func(o model.Order) string { return o.ID },
		s.HandleOrderConfirmed)
}
