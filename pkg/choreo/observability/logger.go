package observability

import (
	"log/slog"
)

// EnrichLogger adds messaging context to a logger.
// Returns a new logger with queue, topic, and redeliveries fields.
func EnrichLogger(logger *slog.Logger, queue, topic string, redeliveries int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("queue", queue),
		slog.String("topic", topic),
		slog.Int("redeliveries", redeliveries),
	)
}

// LogConsumeComplete logs successful processing of an inbound message.
func LogConsumeComplete(logger *slog.Logger, topic string, redeliveries int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("message processed",
		slog.String("topic", topic),
		slog.Int("redeliveries", redeliveries),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogConsumeError logs failed processing of an inbound message.
func LogConsumeError(logger *slog.Logger, topic string, redeliveries int, err error, category string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("message processing failed",
		slog.String("topic", topic),
		slog.Int("redeliveries", redeliveries),
		slog.String("error", err.Error()),
		slog.String("category", category),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPublish logs a successful event publish.
func LogPublish(logger *slog.Logger, topic string) {
	if logger == nil {
		return
	}
	logger.Debug("event published",
		slog.String("topic", topic),
	)
}

// LogPublishError logs a failed event publish.
func LogPublishError(logger *slog.Logger, topic string, err error) {
	if logger == nil {
		return
	}
	logger.Error("event publish failed",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
}
