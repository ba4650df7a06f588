package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
)

// Processor handles one inbound message and reports whether processing
// succeeded. A nil return means the message's effects are applied and
// it is safe to acknowledge.
type Processor func(ctx context.Context, msg *broker.Message) error

// Middleware wraps a Processor with a cross-cutting concern.
type Middleware func(Processor) Processor

// Chain composes middleware around a processor. The first middleware is
// the outermost.
func Chain(p Processor, mws ...Middleware) Processor {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}

// Logging logs each message with its outcome and handler duration.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Processor) Processor {
		return func(ctx context.Context, msg *broker.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			durationMs := float64(time.Since(start).Microseconds()) / 1000.0
			if err != nil {
				observability.LogConsumeError(logger, msg.Topic, msg.Redeliveries,
					err, choreoerrors.Categorize(err).String(), durationMs)
				return err
			}
			observability.LogConsumeComplete(logger, msg.Topic, msg.Redeliveries, durationMs)
			return nil
		}
	}
}

// Recovery converts a handler panic into an error so one bad message
// cannot take down the consumer goroutine.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Processor) Processor {
		return func(ctx context.Context, msg *broker.Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler panic: %v", r)
					logger.Error("handler panicked",
						slog.String("topic", msg.Topic),
						slog.Any("panic", r))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// Metrics records per-message consumption metrics for the given queue.
func Metrics(queue string, recorder observability.MetricsRecorder) Middleware {
	return func(next Processor) Processor {
		return func(ctx context.Context, msg *broker.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			recorder.RecordConsume(ctx, queue, msg.Topic, time.Since(start), err)
			return err
		}
	}
}

// Tracing opens a consumer span around each message.
func Tracing(queue string, spans observability.SpanManager) Middleware {
	return func(next Processor) Processor {
		return func(ctx context.Context, msg *broker.Message) error {
			ctx, span := spans.StartConsumeSpan(ctx, queue, msg.Topic)
			err := next(ctx, msg)
			spans.EndSpanWithError(span, err)
			return err
		}
	}
}

// AckOnSuccess adapts a Processor to the transport's Handler contract.
//
// Success acknowledges the message. Any failure leaves the message
// unacknowledged so the transport redelivers it. A payload that can
// never process (undecodable, unroutable) circulates until operators
// intervene; the transport contract has no dead-lettering. Handlers
// that decide to drop a message return nil after logging.
func AckOnSuccess(p Processor, logger *slog.Logger) broker.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg *broker.Message) {
		if err := p(ctx, msg); err != nil {
			logger.Warn("leaving message for redelivery",
				slog.String("topic", msg.Topic),
				slog.Int("redeliveries", msg.Redeliveries),
				slog.String("category", choreoerrors.Categorize(err).String()),
				slog.String("error", err.Error()))
			return
		}
		msg.Ack()
	}
}

// ErrUnroutable marks a message no processor is configured for.
var ErrUnroutable = errors.New("no processor for topic")

// Route dispatches messages to the first processor whose subscription
// matches the inbound topic. Unroutable messages fail permanently.
type Route struct {
	Subscription string
	Processor    Processor
}

// Dispatch builds a Processor that routes by topic subscription.
func Dispatch(routes []Route) Processor {
	return func(ctx context.Context, msg *broker.Message) error {
		for _, r := range routes {
			if broker.MatchTopic(r.Subscription, msg.Topic) {
				return r.Processor(ctx, msg)
			}
		}
		return &choreoerrors.CategorizedError{
			Err:      fmt.Errorf("%w: %s", ErrUnroutable, msg.Topic),
			Category: choreoerrors.CategoryPermanent,
			Context:  "dispatch",
		}
	}
}
