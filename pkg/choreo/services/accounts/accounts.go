// Package accounts implements the account-management service: it owns
// the authoritative account cache, handles application and resume
// requests, and confirms detected fraud by suspending the account.
package accounts

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/cache"
	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
)

// Default topic templates and timings.
const (
	DefaultAccountTopic        = "acmebank/account/{action}/v1/{accountID}"
	DefaultFraudConfirmedTopic = "acmebank/fraud/confirmed/v1/{accountID}/{transactionID}/{amount}"
	DefaultOpenDelay           = 15 * time.Second
)

// Account status comments shown in the cache dump.
const (
	commentUnderProcessing = "New account application under processing"
	commentOperational     = "Account operational"
	commentSuspended       = "Account suspended on confirmed fraud"
	commentResumed         = "Account resumed after suspension"
)

// defaultConfirmers are the identities that sign off on fraud incidents.
var defaultConfirmers = []string{"John Doe", "Jane Doe", "Comptroller"}

// Config carries the service's topic templates and timings.
type Config struct {
	// AccountTopic is the template for account lifecycle events; the
	// {action} placeholder takes the lower-cased lifecycle verb.
	AccountTopic string

	// FraudConfirmedTopic is the template for confirmed fraud events.
	FraudConfirmedTopic string

	// OpenDelay is how long an application stays APPLIED before the
	// account opens.
	OpenDelay time.Duration

	// Confirmers overrides the fraud sign-off identities.
	Confirmers []string
}

func (c *Config) applyDefaults() {
	if c.AccountTopic == "" {
		c.AccountTopic = DefaultAccountTopic
	}
	if c.FraudConfirmedTopic == "" {
		c.FraudConfirmedTopic = DefaultFraudConfirmedTopic
	}
	if c.OpenDelay <= 0 {
		c.OpenDelay = DefaultOpenDelay
	}
	if len(c.Confirmers) == 0 {
		c.Confirmers = defaultConfirmers
	}
}

// Service is the account-management service.
type Service struct {
	cfg       Config
	accounts  *cache.Cache[model.Account]
	publisher event.Publisher
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New creates the service. The cache, publisher, and scheduler are
// injected so instances stay independent and testable.
func New(cfg Config, accounts *cache.Cache[model.Account], publisher event.Publisher, sched *scheduler.Scheduler, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		accounts:  accounts,
		publisher: publisher,
		scheduler: sched,
		logger:    logger,
	}
}

// Accounts exposes the cache for status views.
func (s *Service) Accounts() *cache.Cache[model.Account] {
	return s.accounts
}

// ProcessAccountApplicationRequest creates a new account application:
// a fresh 10-digit account number cached as APPLIED, an AccountApplied
// event, and a scheduled opening after the configured delay.
func (s *Service) ProcessAccountApplicationRequest(ctx context.Context) model.Account {
	accountNumber := strconv.FormatInt(decision.AccountNumber(), 10)

	account := model.Account{
		AccountNumber: accountNumber,
		Status:        model.StatusApplied,
		Comment:       commentUnderProcessing,
	}
	s.accounts.Put(accountNumber, account)

	s.publishAccountAction(ctx, accountNumber, model.StatusApplied)

	s.scheduler.Schedule(s.cfg.OpenDelay, func() {
		s.processAccountOpening(context.Background(), accountNumber)
	})

	s.logger.Info("account application received",
		slog.String("accountNum", accountNumber))
	return account
}

// processAccountOpening transitions an applied account to OPENED and
// announces it.
func (s *Service) processAccountOpening(ctx context.Context, accountNumber string) {
	account, ok := s.accounts.Get(accountNumber)
	if !ok {
		s.logger.Warn("opening unknown account, ignoring",
			slog.String("accountNum", accountNumber))
		return
	}

	account.Status = model.StatusOpened
	account.Comment = commentOperational
	s.accounts.Put(accountNumber, account)

	s.publishAccountAction(ctx, accountNumber, model.StatusOpened)

	s.logger.Info("account opened", slog.String("accountNum", accountNumber))
}

// ProcessAccountResumedRequest marks the account RESUMED and announces
// it. Resuming an account that is not suspended is allowed but logged;
// resuming an unknown account is ignored.
func (s *Service) ProcessAccountResumedRequest(ctx context.Context, accountNumber string) bool {
	account, ok := s.accounts.Get(accountNumber)
	if !ok {
		s.logger.Warn("resume requested for unknown account, ignoring",
			slog.String("accountNum", accountNumber))
		return false
	}
	if account.Status != model.StatusSuspended {
		s.logger.Warn("resume requested for account that is not suspended",
			slog.String("accountNum", accountNumber),
			slog.String("status", string(account.Status)))
	}

	account.Status = model.StatusResumed
	account.Comment = commentResumed
	s.accounts.Put(accountNumber, account)

	s.publishAccountAction(ctx, accountNumber, model.StatusResumed)

	s.logger.Info("account resumed", slog.String("accountNum", accountNumber))
	return true
}

// HandleFraudDetected confirms a detected fraud incident: it publishes
// FraudConfirmed with a sign-off identity, suspends the account in the
// cache, and announces AccountSuspended.
func (s *Service) HandleFraudDetected(ctx context.Context, _ event.Envelope, detected model.FraudDetected) error {
	confirmed := model.FraudConfirmed{
		DetectionNum:        decision.DetectionNumber(),
		TransactionNum:      detected.TransactionNum,
		AccountNum:          detected.AccountNum,
		TransactionType:     detected.TransactionType,
		Amount:              detected.Amount,
		Currency:            detected.Currency,
		IncidentDescription: "Confirmed fraudulent transaction",
		FraudConfirmedBy:    decision.OneOf(s.cfg.Confirmers),
		IncidentTimestamp:   detected.Timestamp,
		Timestamp:           model.Now(),
	}

	err := s.publisher.Publish(ctx, s.cfg.FraudConfirmedTopic, map[string]any{
		"accountID":     confirmed.AccountNum,
		"transactionID": confirmed.TransactionNum,
		"amount":        confirmed.Amount,
	}, confirmed)
	if err != nil {
		return err
	}

	if account, ok := s.accounts.Get(detected.AccountNum); ok {
		account.Status = model.StatusSuspended
		account.Comment = commentSuspended
		s.accounts.Put(detected.AccountNum, account)
	} else {
		s.logger.Warn("fraud confirmed for unknown account",
			slog.String("accountNum", detected.AccountNum))
	}

	s.publishAccountAction(ctx, detected.AccountNum, model.StatusSuspended)

	s.logger.Info("fraud confirmed, account suspended",
		slog.String("accountNum", detected.AccountNum),
		slog.Int("transactionNum", detected.TransactionNum),
		slog.String("confirmedBy", confirmed.FraudConfirmedBy))
	return nil
}

// FraudDetectedProcessor wires HandleFraudDetected to the transport.
func (s *Service) FraudDetectedProcessor() event.Processor {
	return event.Typed("fraud.detected", "accounts",
		func(d model.FraudDetected) string { return d.AccountNum },
		s.HandleFraudDetected)
}

func (s *Service) publishAccountAction(ctx context.Context, accountNumber string, status model.AccountStatus) {
	action := model.AccountAction{
		AccountNum:    accountNumber,
		AccountAction: string(status),
		Timestamp:     model.Now(),
	}
	err := s.publisher.Publish(ctx, s.cfg.AccountTopic, map[string]any{
		"action":    actionVerb(status),
		"accountID": accountNumber,
	}, action)
	if err != nil {
		s.logger.Error("account action publish failed",
			slog.String("accountNum", accountNumber),
			slog.String("action", string(status)),
			slog.String("error", err.Error()))
	}
}

// actionVerb lower-cases the lifecycle state for topic use.
func actionVerb(status model.AccountStatus) string {
	switch status {
	case model.StatusApplied:
		return "applied"
	case model.StatusOpened:
		return "opened"
	case model.StatusSuspended:
		return "suspended"
	case model.StatusResumed:
		return "resumed"
	default:
		return "unknown"
	}
}
