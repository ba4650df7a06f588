// Package shipping implements the shipping service: for every settled
// payment it creates a shipment, then publishes the carrier tracking
// number after a handover delay. The 3PL integration is stubbed out.
package shipping

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
	DefaultShipmentTopic = "acmestore/shipment/{verb}/v1/{shipmentId}/{orderId}"

	// DefaultPaymentUpdatedSubscription matches settled payments from
	// every region.
	DefaultPaymentUpdatedSubscription = "acmestore/payment/updated/v1/>"

	// DefaultUpdateDelay is how long after creation the carrier
	// assigns a tracking number.
	DefaultUpdateDelay = 15 * time.Second
)

// Shipment event verbs.
const (
	verbCreated = "created"
	verbUpdated = "updated"
)

// Config carries the service's topic templates and timings.
type Config struct {
	// ShipmentTopic is the template for shipment events; the {verb}
	// placeholder takes created or updated.
	ShipmentTopic string

	// PaymentUpdatedSubscription is the inbound topic subscription.
	PaymentUpdatedSubscription string

	// UpdateDelay is the carrier handover delay before the updated
	// event.
	UpdateDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.ShipmentTopic == "" {
		c.ShipmentTopic = DefaultShipmentTopic
	}
	if c.PaymentUpdatedSubscription == "" {
		c.PaymentUpdatedSubscription = DefaultPaymentUpdatedSubscription
	}
	if c.UpdateDelay <= 0 {
		c.UpdateDelay = DefaultUpdateDelay
	}
}

// Service is the shipping service.
type Service struct {
	cfg       Config
	publisher event.Publisher
	scheduler *scheduler.Scheduler
	processed inbox.Store
	logger    *slog.Logger
}

// New creates the service. The inbox keeps a redelivered payment from
// producing a second shipment; a nil store disables deduplication.
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
	return []string{s.cfg.PaymentUpdatedSubscription}
}

// HandlePaymentUpdated hands the order to the carrier and publishes
// the created shipment, then schedules the updated event that carries
// the tracking number.
func (s *Service) HandlePaymentUpdated(ctx context.Context, env event.Envelope, payment model.Payment) error {
	seen, err := s.processed.Seen(env.Type, env.CorrelationID)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Info("duplicate payment updated event, skipping",
			slog.String("orderId", payment.OrderID))
		return nil
	}

	s.logger.Info("carrier integration processed",
		slog.String("orderId", payment.OrderID),
		slog.String("paymentId", payment.ID))

	created := model.Shipping{
		ID:      strconv.Itoa(decision.ShipmentNumber()),
		OrderID: payment.OrderID,
	}
	if err := s.publishShipment(ctx, created, verbCreated); err != nil {
		return err
	}

	s.scheduler.Schedule(s.cfg.UpdateDelay, func() {
		s.processShipmentUpdate(context.Background(), payment)
	})

	// Marked only once every effect is in place: a failed publish above
	// leaves the message unmarked so the redelivery retries it.
	_, err = s.processed.MarkProcessed(env.Type, env.CorrelationID)
	return err
}

// processShipmentUpdate publishes the tracking assignment. The
// shipment carries a fresh identifier; downstream consumers correlate
// by orderId.
func (s *Service) processShipmentUpdate(ctx context.Context, payment model.Payment) {
	updated := model.Shipping{
		ID:             strconv.Itoa(decision.ShipmentNumber()),
		OrderID:        payment.OrderID,
		TrackingNumber: decision.TrackingNumber(),
	}
	if err := s.publishShipment(ctx, updated, verbUpdated); err != nil {
		s.logger.Error("shipment update publish failed",
			slog.String("orderId", payment.OrderID),
			slog.Any("error", err))
	}
}

func (s *Service) publishShipment(ctx context.Context, shipment model.Shipping, verb string) error {
	err := s.publisher.Publish(ctx, s.cfg.ShipmentTopic, map[string]any{
		"verb":       verb,
		"shipmentId": shipment.ID,
		"orderId":    shipment.OrderID,
	}, shipment)
	if err != nil {
		return err
	}
	s.logger.Info("shipment event published",
		slog.String("shipmentId", shipment.ID),
		slog.String("orderId", shipment.OrderID),
		slog.String("verb", verb))
	return nil
}

// PaymentUpdatedProcessor wires HandlePaymentUpdated to the transport.
func (s *Service) PaymentUpdatedProcessor() event.Processor {
	return event.Typed("payment.updated", "shipping",
		func(p model.Payment) string { return p.OrderID },
		s.HandlePaymentUpdated)
}
