// Package main boots the retail pipeline: order, inventory, payment,
// and shipping services choreographed over one in-memory broker with
// durable-queue semantics.
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
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/inbox"
	"github.com/acmedemos/choreo/pkg/choreo/model"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
	"github.com/acmedemos/choreo/pkg/choreo/outbox"
	"github.com/acmedemos/choreo/pkg/choreo/scheduler"
	"github.com/acmedemos/choreo/pkg/choreo/services/inventory"
	"github.com/acmedemos/choreo/pkg/choreo/services/orders"
	"github.com/acmedemos/choreo/pkg/choreo/services/payments"
	"github.com/acmedemos/choreo/pkg/choreo/services/shipping"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml or json config file")
	addr := flag.String("addr", ":8081", "http listen address")
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
		logger.Error("retail pipeline failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// newInbox opens the persistent processed-event store for a consumer,
// falling back to the in-memory store when no path is configured.
func newInbox(cfg config.Config, key string, logger *slog.Logger) (inbox.Store, error) {
	path := cfg.String(key, "")
	if path == "" {
		return inbox.NewMemoryStore(), nil
	}
	store, err := inbox.NewBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("inbox open %s: %w", path, err)
	}
	logger.Info("inbox opened", slog.String("path", path))
	return store, nil
}

func run(cfg config.Config, addr string, logger *slog.Logger) error {
	metrics := observability.NewMetricsRecorder()
	spans := observability.NewSpanManager()

	brokerCfg := cfg.Sub("broker")
	retailCfg := cfg.Sub("retail")

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

	store, err := outbox.NewStore(retailCfg.String("outbox", "choreo-retail-outbox.db"))
	if err != nil {
		return fmt.Errorf("outbox open: %w", err)
	}
	defer store.Close()

	publisher := outbox.NewPublisher(store, logger)
	dispatcher := outbox.NewDispatcher(store, bkr, outbox.DispatcherConfig{
		Interval: retailCfg.Duration("dispatchInterval", time.Second),
	}, logger, metrics)
	dispatcher.Start()
	defer dispatcher.Stop()

	sched := scheduler.New()
	defer sched.Stop()

	ordersSvc := orders.New(orders.Config{
		CreateDelay: cfg.Sub("orders").Duration("createDelay", orders.DefaultCreateDelay),
	}, cache.New[model.Order](), publisher, sched, logger)

	inventoryInbox, err := newInbox(cfg.Sub("inventory"), "inbox", logger)
	if err != nil {
		return err
	}
	defer inventoryInbox.Close()
	inventorySvc := inventory.New(inventory.Config{}, publisher, inventoryInbox, logger)

	paymentsInbox, err := newInbox(cfg.Sub("payments"), "inbox", logger)
	if err != nil {
		return err
	}
	defer paymentsInbox.Close()
	paymentsSvc := payments.New(payments.Config{
		UpdateDelay: cfg.Sub("payments").Duration("updateDelay", payments.DefaultUpdateDelay),
	}, publisher, sched, paymentsInbox, logger)

	shippingInbox, err := newInbox(cfg.Sub("shipping"), "inbox", logger)
	if err != nil {
		return err
	}
	defer shippingInbox.Close()
	shippingSvc := shipping.New(shipping.Config{
		UpdateDelay: cfg.Sub("shipping").Duration("updateDelay", shipping.DefaultUpdateDelay),
	}, publisher, sched, shippingInbox, logger)

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
		if err := subscribe("orders-updates", ordersSvc.Subscriptions(),
			event.Dispatch(ordersSvc.UpdateRoutes())); err != nil {
			return fmt.Errorf("orders subscribe: %w", err)
		}
		if err := subscribe("inventory-orders-created",
			cfg.Sub("inventory").StringSlice("subscriptions", []string{"acmestore/order/created/v1/>"}),
			inventorySvc.OrderCreatedProcessor()); err != nil {
			return fmt.Errorf("inventory subscribe: %w", err)
		}
		if err := subscribe("payments-orders-confirmed", paymentsSvc.Subscriptions(),
			paymentsSvc.OrderConfirmedProcessor()); err != nil {
			return fmt.Errorf("payments subscribe: %w", err)
		}
		if err := subscribe("shipping-payments-updated", shippingSvc.Subscriptions(),
			shippingSvc.PaymentUpdatedProcessor()); err != nil {
			return fmt.Errorf("shipping subscribe: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /baskets", func(w http.ResponseWriter, r *http.Request) {
		order := ordersSvc.CreateBasket(r.Context())
		writeJSON(w, http.StatusAccepted, order)
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ordersSvc.Orders().Snapshot())
	})
	mux.HandleFunc("GET /orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		order, ok := ordersSvc.Orders().Get(r.PathValue("orderId"))
		if !ok {
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, order)
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
	sched.Stop()
	dispatcher.Stop()
	dispatcher.Drain(shutdownCtx)
	logger.Info("retail pipeline stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.Any("error", err))
	}
}
