// Package corebank implements the core-banking service: it mirrors
// account lifecycle events into a local cache and synthesizes banking
// transactions for operational accounts on a fixed schedule.
package corebank

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/cache"
	"github.com/acmedemos/choreo/pkg/choreo/decision"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
)

// Default transaction simulator settings.
const (
	DefaultTransactionTopic = "acmebank/transaction/{transactionType}/v1/{currency}/{amount}/{transactionID}"
	DefaultTickInterval     = 5 * time.Second
	DefaultWarmup           = 10 * time.Second
	DefaultCurrency         = "Euro"
)

var transactionTypes = []string{
	model.TransactionDeposit,
	model.TransactionTransfer,
	model.TransactionWithdrawal,
}

// Config carries the service's topic template and simulator timings.
type Config struct {
	// TransactionTopic is the template for synthesized transactions.
	TransactionTopic string

	// TickInterval is the time between simulator passes.
	TickInterval time.Duration

	// Warmup delays the first simulator pass after Start.
	// Negative disables the warm-up.
	Warmup time.Duration

	// Currency stamps every synthesized transaction.
	Currency string
}

func (c *Config) applyDefaults() {
	if c.TransactionTopic == "" {
		c.TransactionTopic = DefaultTransactionTopic
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Warmup == 0 {
		c.Warmup = DefaultWarmup
	}
	if c.Warmup < 0 {
		c.Warmup = 0
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
}

// Service is the core-banking service.
type Service struct {
	cfg       Config
	accounts  *cache.Cache[model.Account]
	publisher event.Publisher
	logger    *slog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates the service with an injected denormalized account cache.
func New(cfg Config, accounts *cache.Cache[model.Account], publisher event.Publisher, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// HandleAccountAction mirrors an account lifecycle event into the local
// cache. The cached copy is denormalized: only the number and status,
// keyed by account number with last-writer-wins.
func (s *Service) HandleAccountAction(_ context.Context, _ event.Envelope, action model.AccountAction) error {
	status := model.AccountStatus(strings.ToUpper(action.AccountAction))
	switch status {
	case model.StatusApplied, model.StatusOpened, model.StatusActive,
		model.StatusSuspended, model.StatusResumed:
	default:
		s.logger.Warn("unknown account action, ignoring",
			slog.String("accountNum", action.AccountNum),
			slog.String("action", action.AccountAction))
		return nil
	}

	s.accounts.Put(action.AccountNum, model.Account{
		AccountNumber: action.AccountNum,
		Status:        status,
	})

	s.logger.Info("account state mirrored",
		slog.String("accountNum", action.AccountNum),
		slog.String("status", string(status)))
	return nil
}

// AccountActionProcessor wires HandleAccountAction to the transport.
func (s *Service) AccountActionProcessor() event.Processor {
	return event.Typed("account.action", "corebank",
		func(a model.AccountAction) string { return a.AccountNum },
		s.HandleAccountAction)
}

// StartSimulator launches the transaction simulator: after the warm-up
// it synthesizes one random transaction per operational account
// (OPENED, ACTIVE, or RESUMED) every tick. Stop shuts it down.
// Subsequent calls are no-ops.
func (s *Service) StartSimulator(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)

		select {
		case <-time.After(s.cfg.Warmup):
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()

		for {
			s.simulateTransactions(ctx)
			select {
			case <-ticker.C:
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSimulator halts the simulator and waits for the current pass.
// Safe to call without a prior StartSimulator.
func (s *Service) StopSimulator() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
	})
}

func (s *Service) simulateTransactions(ctx context.Context) {
	for _, account := range s.accounts.Values() {
		switch account.Status {
		case model.StatusOpened, model.StatusActive, model.StatusResumed:
		default:
			continue
		}

		tx := model.Transaction{
			TransactionNum:  decision.TransactionNumber(),
			AccountNum:      account.AccountNumber,
			TransactionType: decision.OneOf(transactionTypes),
			Amount:          decision.Amount(),
			Currency:        s.cfg.Currency,
			Timestamp:       model.Now(),
		}

		err := s.publisher.Publish(ctx, s.cfg.TransactionTopic, map[string]any{
			"currency":        tx.Currency,
			"amount":          tx.Amount,
			"transactionID":   tx.TransactionNum,
			"transactionType": strings.ToLower(tx.TransactionType),
		}, tx)
		if err != nil {
			s.logger.Error("transaction publish failed",
				slog.String("accountNum", tx.AccountNum),
				slog.String("error", err.Error()))
			continue
		}

		s.logger.Info("synthesized transaction",
			slog.String("accountNum", tx.AccountNum),
			slog.String("type", tx.TransactionType),
			slog.Float64("amount", tx.Amount))
	}
}
