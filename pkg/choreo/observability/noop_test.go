package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	// All methods should be safe to call and do nothing.
	m.RecordConsume(ctx, "q", "evt", time.Second, nil)
	m.RecordConsume(ctx, "q", "evt", time.Second, errors.New("err"))
	m.RecordPublish(ctx, "evt", nil)
	m.RecordOutboxPending(ctx, 42)
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartConsumeSpan(ctx, "q", "a/b/c")
	assert.Equal(t, ctx, newCtx, "context should be unchanged")
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	newCtx, span = sm.StartPublishSpan(ctx, "a/b/c")
	assert.Equal(t, ctx, newCtx)
	assert.False(t, span.IsRecording())

	sm.EndSpanWithError(span, errors.New("ignored"))
	sm.EndSpanWithError(nil, nil)
	sm.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
}
