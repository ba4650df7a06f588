package event_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/event"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
)

type testEvent struct {
	AccountNum int    `json:"accountNum"`
	Action     string `json:"accountAction"`
}

func TestDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		evt, err := event.Decode[testEvent]("acct/applied/v1/42", []byte(`{"accountNum":42,"accountAction":"APPLIED"}`))
		require.NoError(t, err)
		assert.Equal(t, 42, evt.AccountNum)
		assert.Equal(t, "APPLIED", evt.Action)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := event.Decode[testEvent]("acct/applied/v1/42", []byte(`not json`))
		require.Error(t, err)

		var decodeErr *choreoerrors.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "acct/applied/v1/42", decodeErr.Topic)
		assert.Equal(t, choreoerrors.CategoryPermanent, choreoerrors.Categorize(err))
	})
}

// capturingBroker records publishes for assertions.
type capturingBroker struct {
	mu      sync.Mutex
	topics  []string
	bodies  [][]byte
	failNow error
}

func (b *capturingBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNow != nil {
		return b.failNow
	}
	b.topics = append(b.topics, topic)
	b.bodies = append(b.bodies, payload)
	return nil
}

func (b *capturingBroker) Subscribe(string, []string, broker.Handler) error { return nil }
func (b *capturingBroker) Close() error                                     { return nil }

func TestDirectPublisher(t *testing.T) {
	t.Run("renders topic and serializes payload", func(t *testing.T) {
		cb := &capturingBroker{}
		p := event.NewDirectPublisher(cb, slog.Default())

		err := p.Publish(context.Background(), "acct/{action}/v1/{accountID}",
			map[string]any{"action": "applied", "accountID": 42},
			testEvent{AccountNum: 42, Action: "APPLIED"})
		require.NoError(t, err)

		require.Len(t, cb.topics, 1)
		assert.Equal(t, "acct/applied/v1/42", cb.topics[0])
		assert.JSONEq(t, `{"accountNum":42,"accountAction":"APPLIED"}`, string(cb.bodies[0]))
	})

	t.Run("serialization failure is dropped with error", func(t *testing.T) {
		cb := &capturingBroker{}
		p := event.NewDirectPublisher(cb, slog.Default())

		err := p.Publish(context.Background(), "evt/x", nil, make(chan int))
		require.Error(t, err)

		var pubErr *choreoerrors.PublishError
		assert.ErrorAs(t, err, &pubErr)
		assert.Empty(t, cb.topics, "nothing should reach the broker")
	})

	t.Run("broker failure propagates", func(t *testing.T) {
		cb := &capturingBroker{failNow: &choreoerrors.PublishError{Topic: "evt/x", Err: errors.New("down")}}
		p := event.NewDirectPublisher(cb, slog.Default())

		err := p.Publish(context.Background(), "evt/x", nil, testEvent{})
		require.Error(t, err)
		assert.True(t, choreoerrors.IsRetryable(err))
	})
}

func newMessage(topic string, payload []byte) *broker.Message {
	return &broker.Message{Topic: topic, Payload: payload}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) event.Middleware {
		return func(next event.Processor) event.Processor {
			return func(ctx context.Context, msg *broker.Message) error {
				order = append(order, name+"-in")
				err := next(ctx, msg)
				order = append(order, name+"-out")
				return err
			}
		}
	}

	p := event.Chain(func(context.Context, *broker.Message) error {
		order = append(order, "handler")
		return nil
	}, mw("outer"), mw("inner"))

	require.NoError(t, p(context.Background(), newMessage("t", nil)))
	assert.Equal(t, []string{"outer-in", "inner-in", "handler", "inner-out", "outer-out"}, order)
}

func TestRecovery(t *testing.T) {
	p := event.Chain(func(context.Context, *broker.Message) error {
		panic("boom")
	}, event.Recovery(slog.Default()))

	err := p(context.Background(), newMessage("t", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMetricsMiddleware(t *testing.T) {
	// NoopMetrics keeps the test free of a meter provider; the recorder
	// contract itself is covered in the observability package.
	p := event.Chain(func(context.Context, *broker.Message) error {
		return nil
	}, event.Metrics("q.test", observability.NoopMetrics{}))

	assert.NoError(t, p(context.Background(), newMessage("t", nil)))
}

func TestTracingMiddleware(t *testing.T) {
	p := event.Chain(func(context.Context, *broker.Message) error {
		return errors.New("failed")
	}, event.Tracing("q.test", observability.NoopSpanManager{}))

	assert.Error(t, p(context.Background(), newMessage("t", nil)))
}

func TestAckOnSuccess(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantAck bool
	}{
		{"success acks", nil, true},
		{"decode failure leaves unacked", &choreoerrors.DecodeError{EventType: "x", Err: errors.New("bad")}, false},
		{"transient failure leaves unacked", &choreoerrors.PublishError{Topic: "t", Err: errors.New("down")}, false},
		{"unknown failure leaves unacked", errors.New("mystery"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := event.AckOnSuccess(func(context.Context, *broker.Message) error {
				return tt.err
			}, slog.Default())

			msg := newMessage("t", nil)
			h(context.Background(), msg)
			assert.Equal(t, tt.wantAck, msg.Acked())
		})
	}
}

func TestAckOnSuccessMalformedPayloadRedelivered(t *testing.T) {
	type note struct {
		ID string `json:"id"`
	}
	handled := 0
	p := event.Typed("note.created", "notes",
		func(n note) string { return n.ID },
		func(context.Context, event.Envelope, note) error {
			handled++
			return nil
		})
	h := event.AckOnSuccess(p, slog.Default())

	msg := newMessage("shop/note/created/v1/1", []byte("not json"))
	h(context.Background(), msg)

	assert.False(t, msg.Acked(), "undecodable payloads stay queued for redelivery")
	assert.Zero(t, handled)
}

func TestDispatch(t *testing.T) {
	var hit string
	routes := []event.Route{
		{Subscription: "shop/order/created/>", Processor: func(context.Context, *broker.Message) error {
			hit = "created"
			return nil
		}},
		{Subscription: "shop/order/>", Processor: func(context.Context, *broker.Message) error {
			hit = "other"
			return nil
		}},
	}
	p := event.Dispatch(routes)

	t.Run("first matching route wins", func(t *testing.T) {
		require.NoError(t, p(context.Background(), newMessage("shop/order/created/v1/eu/1", nil)))
		assert.Equal(t, "created", hit)
	})

	t.Run("falls through to broader route", func(t *testing.T) {
		require.NoError(t, p(context.Background(), newMessage("shop/order/confirmed/v1/eu/1", nil)))
		assert.Equal(t, "other", hit)
	})

	t.Run("unroutable is permanent", func(t *testing.T) {
		err := p(context.Background(), newMessage("shop/payment/created/v1", nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, event.ErrUnroutable)
		assert.Equal(t, choreoerrors.CategoryPermanent, choreoerrors.Categorize(err))
	})
}

func TestDispatchRoutesAreIndependent(t *testing.T) {
	calls := map[string]int{}
	route := func(name, sub string) event.Route {
		return event.Route{Subscription: sub, Processor: func(context.Context, *broker.Message) error {
			calls[name]++
			return nil
		}}
	}
	p := event.Dispatch([]event.Route{
		route("stock", "shop/stock/reserved/>"),
		route("payment", "shop/payment/*/v1/*/*"),
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, p(context.Background(), newMessage(fmt.Sprintf("shop/stock/reserved/v1/%d/p/r", i), nil)))
	}
	require.NoError(t, p(context.Background(), newMessage("shop/payment/created/v1/eu/9", nil)))

	assert.Equal(t, 3, calls["stock"])
	assert.Equal(t, 1, calls["payment"])
}
