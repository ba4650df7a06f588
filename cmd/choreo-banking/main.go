// Package main boots the banking pipeline: account management, core
// banking with the transaction simulator, and fraud detection, all
// wired over one in-memory broker with durable-queue semantics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	"github.com/acmedemos/choreo/pkg/choreo/cache"
	"github.com/acmedemos/choreo/pkg/choreo/config"
	"github.com/acmedemos/choreo/pkg/choreo/decision"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
	"github.com/acmedemos/choreo/pkg/choreo/outbox"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
	"github.com/acmedemos/choreo/pkg/choreo/services/accounts"
	"github.com/acmedemos/choreo/pkg/choreo/services/corebank"
	"github.com/acmedemos/choreo/pkg/choreo/services/frauddetect"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml or json config file")
	addr := flag.String("addr", ":8080", "http listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.New(nil)
	if *configPath != "" {
		var err error
		cfg, err = config.FromFile(*configPath)
		if err != nil {
			logger.Error("config load failed", slog.String("path", *configPath), slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := run(cfg, *addr, logger); err != nil {
		logger.Error("banking pipeline failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, addr string, logger *slog.Logger) error {
	metrics := observability.NewMetricsRecorder()
	spans := observability.NewSpanManager()

	brokerCfg := cfg.Sub("broker")
	bankingCfg := cfg.Sub("banking")
	accountsCfg := cfg.Sub("accounts")
	corebankCfg := cfg.Sub("corebank")
	fraudCfg := cfg.Sub("frauddetect")

	memCfg := broker.MemConfig{
		BufferSize:      brokerCfg.Int("bufferSize", 256),
		RedeliveryDelay: brokerCfg.Duration("redeliveryDelay", time.Second),
		OnReceipt: func(r broker.Receipt) {
			if r.Err != nil {
				logger.Warn("publish nack", slog.String("topic", r.Topic), slog.Any("error", r.Err))
				return
			}
			logger.Debug("publish ack", slog.String("topic", r.Topic))
		},
	}
	bkr, dialErr := broker.Dial(cfg.Broker(), memCfg, choreoerrors.DefaultRetry)
	if dialErr != nil {
		// The pipeline stays up without active consumption: publishes
		// accumulate in the outbox until the broker comes back.
		logger.Error("broker connection failed, continuing without consumption", slog.Any("error", dialErr))
		bkr = broker.NewMem(memCfg)
	}
	defer bkr.Close()

	store, err := outbox.NewStore(bankingCfg.String("outbox", "choreo-banking-outbox.db"))
	if err != nil {
		return fmt.Errorf("outbox open: %w", err)
	}
	defer store.Close()

	publisher := outbox.NewPublisher(store, logger)
	dispatcher := outbox.NewDispatcher(store, bkr, outbox.DispatcherConfig{
		Interval: bankingCfg.Duration("dispatchInterval", time.Second),
	}, logger, metrics)
	dispatcher.Start()
	defer dispatcher.Stop()

	sched := scheduler.New()
	defer sched.Stop()

	accountsSvc := accounts.New(accounts.Config{
		OpenDelay: accountsCfg.Duration("openDelay", accounts.DefaultOpenDelay),
	}, cache.New[model.Account](), publisher, sched, logger)

	corebankSvc := corebank.New(corebank.Config{
		TickInterval: corebankCfg.Duration("tickInterval", corebank.DefaultTickInterval),
		Warmup:       corebankCfg.Duration("warmup", corebank.DefaultWarmup),
	}, cache.New[model.Account](), publisher, logger)

	frauddetectSvc := frauddetect.New(frauddetect.Config{},
		decision.NewRandomDecider(fraudCfg.Float("probability", frauddetect.DefaultFraudProbability)),
		publisher, logger)

	subscribe := func(queue string, subscriptions []string, p event.Processor) error {
		handler := event.AckOnSuccess(event.Chain(p,
			event.Recovery(logger),
			event.Logging(logger),
			event.Metrics(queue, metrics),
			event.Tracing(queue, spans),
		), logger)
		return bkr.Subscribe(queue, subscriptions, handler)
	}

	if dialErr == nil {
		if err := subscribe("corebank-account-actions",
			corebankCfg.StringSlice("subscriptions", []string{"acmebank/account/*/v1/>"}),
			corebankSvc.AccountActionProcessor()); err != nil {
			return fmt.Errorf("corebank subscribe: %w", err)
		}
		if err := subscribe("frauddetect-transactions",
			fraudCfg.StringSlice("subscriptions", []string{"acmebank/transaction/*/v1/>"}),
			frauddetectSvc.TransactionProcessor()); err != nil {
			return fmt.Errorf("frauddetect subscribe: %w", err)
		}
		if err := subscribe("accounts-fraud-detected",
			accountsCfg.StringSlice("subscriptions", []string{"acmebank/fraud/detected/v1/>"}),
			accountsSvc.FraudDetectedProcessor()); err != nil {
			return fmt.Errorf("accounts subscribe: %w", err)
		}
	}

	simCtx, simCancel := context.WithCancel(context.Background())
	defer simCancel()
	corebankSvc.StartSimulator(simCtx)
	defer corebankSvc.StopSimulator()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/apply", func(w http.ResponseWriter, r *http.Request) {
		account := accountsSvc.ProcessAccountApplicationRequest(r.Context())
		writeJSON(w, http.StatusAccepted, account)
	})
	mux.HandleFunc("POST /accounts/{accountNum}/resume", func(w http.ResponseWriter, r *http.Request) {
		accountNum := r.PathValue("accountNum")
		if !accountsSvc.ProcessAccountResumedRequest(r.Context(), accountNum) {
			http.Error(w, "unknown account", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"accountNum": accountNum, "status": "RESUMED"})
	})
	mux.HandleFunc("GET /accounts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, accountsSvc.Accounts().Snapshot())
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info("shutdown signal", slog.String("signal", s.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.Any("error", err))
	}

	// Stop producing before the final outbox drain so nothing published
	// during shutdown is stranded.
	corebankSvc.StopSimulator()
	sched.Stop()
	dispatcher.Stop()
	dispatcher.Drain(shutdownCtx)
	logger.Info("banking pipeline stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.Any("error", err))
	}
}
