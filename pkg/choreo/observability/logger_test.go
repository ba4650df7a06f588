package observability_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmedemos/choreo/pkg/choreo/observability"
)

func newCapturingLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds messaging context", func(t *testing.T) {
		logger, buf := newCapturingLogger()
		enriched := observability.EnrichLogger(logger, "orders-updates", "acmestore/order/confirmed/v1/DE/1", 2)
		enriched.Info("handling")

		record := lastRecord(t, buf)
		assert.Equal(t, "orders-updates", record["queue"])
		assert.Equal(t, "acmestore/order/confirmed/v1/DE/1", record["topic"])
		assert.Equal(t, float64(2), record["redeliveries"])
	})

	t.Run("nil logger stays nil", func(t *testing.T) {
		assert.Nil(t, observability.EnrichLogger(nil, "q", "t", 0))
	})
}

func TestLogConsume(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		logger, buf := newCapturingLogger()
		observability.LogConsumeComplete(logger, "acmebank/account/opened/v1/1", 0, 1.5)

		record := lastRecord(t, buf)
		assert.Equal(t, "message processed", record["msg"])
		assert.Equal(t, 1.5, record["duration_ms"])
	})

	t.Run("error", func(t *testing.T) {
		logger, buf := newCapturingLogger()
		observability.LogConsumeError(logger, "acmebank/account/opened/v1/1", 3,
			errors.New("boom"), "transient", 0.4)

		record := lastRecord(t, buf)
		assert.Equal(t, "message processing failed", record["msg"])
		assert.Equal(t, "boom", record["error"])
		assert.Equal(t, "transient", record["category"])
		assert.Equal(t, float64(3), record["redeliveries"])
	})

	t.Run("nil logger is a no-op", func(t *testing.T) {
		observability.LogConsumeComplete(nil, "t", 0, 0)
		observability.LogConsumeError(nil, "t", 0, errors.New("boom"), "transient", 0)
	})
}

func TestLogPublish(t *testing.T) {
	logger, buf := newCapturingLogger()
	observability.LogPublishError(logger, "acmestore/order/created/v1/DE/1", errors.New("down"))

	record := lastRecord(t, buf)
	assert.Equal(t, "event publish failed", record["msg"])
	assert.Equal(t, "down", record["error"])

	observability.LogPublish(nil, "t")
	observability.LogPublishError(nil, "t", errors.New("down"))
}
