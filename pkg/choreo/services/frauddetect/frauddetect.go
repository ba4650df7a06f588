// Package frauddetect implements the fraud-detection service: it
// screens banking transactions and raises FraudDetected incidents for
// the ones the configured decider flags.
package frauddetect

import (
	"context"
	"log/slog"

	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
)

// DefaultFraudDetectedTopic is the template for detected incidents.
const DefaultFraudDetectedTopic = "acmebank/fraud/detected/v1/{accountID}/{transactionID}/{amount}"

// DefaultFraudProbability is the chance a screened transaction is
// flagged when no decider is injected.
const DefaultFraudProbability = 0.5

// Config carries the service's topic template.
type Config struct {
	// FraudDetectedTopic is the template for FraudDetected events.
	FraudDetectedTopic string
}

func (c *Config) applyDefaults() {
	if c.FraudDetectedTopic == "" {
		c.FraudDetectedTopic = DefaultFraudDetectedTopic
	}
}

// Service is the fraud-detection service.
type Service struct {
	cfg       Config
	decider   decision.FraudDecider
	publisher event.Publisher
	logger    *slog.Logger
}

// New creates the service. A nil decider defaults to a random decider
// with DefaultFraudProbability.
func New(cfg Config, decider decision.FraudDecider, publisher event.Publisher, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if decider == nil {
		decider = decision.NewRandomDecider(DefaultFraudProbability)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		decider:   decider,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleTransaction screens one transaction. Flagged transactions
// produce a FraudDetected event carrying the transaction's correlation
// fields unchanged; clean transactions pass silently.
func (s *Service) HandleTransaction(ctx context.Context, _ event.Envelope, tx model.Transaction) error {
	if !s.decider.IsFraud() {
		return nil
	}

	detected := model.FraudDetected{
		DetectionNum:        decision.DetectionNumber(),
		TransactionNum:      tx.TransactionNum,
		AccountNum:          tx.AccountNum,
		TransactionType:     tx.TransactionType,
		Amount:              tx.Amount,
		Currency:            tx.Currency,
		IncidentDescription: "Potential fraudulent/suspicious transaction",
		IncidentTimestamp:   tx.Timestamp,
		Timestamp:           model.Now(),
	}

	err := s.publisher.Publish(ctx, s.cfg.FraudDetectedTopic, map[string]any{
		"accountID":     detected.AccountNum,
		"transactionID": detected.TransactionNum,
		"amount":        detected.Amount,
	}, detected)
	if err != nil {
		return err
	}

	s.logger.Info("transaction flagged as fraud",
		slog.String("accountNum", tx.AccountNum),
		slog.Int("transactionNum", tx.TransactionNum),
		slog.Float64("amount", tx.Amount))
	return nil
}

// TransactionProcessor wires HandleTransaction to the transport.
func (s *Service) TransactionProcessor() event.Processor {
	return event.Typed("banking.transaction", "frauddetect",
		func(tx model.Transaction) string { return tx.AccountNum },
		s.HandleTransaction)
}
