package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
	"github.com/acmedemos/choreo/pkg/choreo/topic"
)

// DispatcherConfig tunes the background drain loop.
type DispatcherConfig struct {
	// Interval between drain passes. Default: 1s
	Interval time.Duration

	// BatchSize caps the entries taken per pass. Default: 100
	BatchSize int

	// Retry governs per-entry publish retries within a pass. An entry
	// that still fails stays pending and is retried next pass.
	Retry choreoerrors.RetryConfig
}

// Dispatcher drains pending outbox entries to the broker.
type Dispatcher struct {
	store   *Store
	broker  broker.Broker
	config  DispatcherConfig
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher creates a dispatcher. Nil logger defaults to
// slog.Default(); nil metrics defaults to a no-op recorder.
func NewDispatcher(store *Store, b broker.Broker, cfg DispatcherConfig, logger *slog.Logger, metrics observability.MetricsRecorder) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = choreoerrors.DefaultRetry
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Dispatcher{
		store:   store,
		broker:  b,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Start launches the drain loop. Stop shuts it down.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.drain(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the drain loop and waits for the current pass to finish.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		if d.cancel != nil {
			d.cancel()
			<-d.done
		}
	})
}

// Drain runs one drain pass synchronously. Exposed for shutdown flushes
// and tests; the background loop calls it on every tick.
func (d *Dispatcher) Drain(ctx context.Context) {
	d.drain(ctx)
}

func (d *Dispatcher) drain(ctx context.Context) {
	entries, err := d.store.Pending(d.config.BatchSize)
	if err != nil {
		d.logger.Error("outbox read failed", slog.String("error", err.Error()))
		return
	}

	for _, e := range entries {
		entry := e
		result := choreoerrors.WithRetryContext(ctx, d.config.Retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d.broker.Publish(ctx, entry.Topic, entry.Payload)
		})
		d.metrics.RecordPublish(ctx, entry.Topic, result.Err)
		if result.Err != nil {
			// Stays pending; preserve ordering by not skipping ahead.
			d.logger.Warn("outbox dispatch failed, will retry",
				slog.Int64("entry_id", entry.ID),
				slog.String("topic", entry.Topic),
				slog.String("error", result.Err.Error()))
			break
		}
		if err := d.store.MarkDispatched(entry.ID); err != nil {
			d.logger.Error("outbox mark failed",
				slog.Int64("entry_id", entry.ID),
				slog.String("error", err.Error()))
			break
		}
	}

	if pending, err := d.store.PendingCount(); err == nil {
		d.metrics.RecordOutboxPending(ctx, pending)
	}
}

// Publisher implements event publishing through the outbox: events are
// persisted first and reach the broker via the dispatcher. Publish only
// fails if the local write fails.
type Publisher struct {
	store  *Store
	logger *slog.Logger
}

// NewPublisher creates an outbox-backed publisher.
func NewPublisher(store *Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Publish renders the topic template, serializes the payload, and
// appends the event to the outbox.
func (p *Publisher) Publish(_ context.Context, pattern string, params map[string]any, payload any) error {
	resolved := topic.Render(pattern, params)

	data, err := json.Marshal(payload)
	if err != nil {
		pubErr := &choreoerrors.PublishError{Topic: resolved, Err: err}
		p.logger.Error("event serialization failed, dropping",
			slog.String("topic", resolved),
			slog.String("error", err.Error()))
		return pubErr
	}

	if err := p.store.Append(resolved, data); err != nil {
		return &choreoerrors.PublishError{Topic: resolved, Err: err}
	}
	return nil
}
