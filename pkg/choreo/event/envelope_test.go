package event_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/event"
)

func TestTyped(t *testing.T) {
	t.Run("decodes once and fills the envelope", func(t *testing.T) {
		var got event.Envelope
		var gotEvt testEvent

		p := event.Typed("account.applied", "accounts",
			func(e testEvent) string { return "acct-42" },
			func(_ context.Context, env event.Envelope, evt testEvent) error {
				got = env
				gotEvt = evt
				return nil
			})

		msg := &broker.Message{
			Topic:        "acct/applied/v1/42",
			Payload:      []byte(`{"accountNum":42,"accountAction":"APPLIED"}`),
			Redeliveries: 2,
		}
		require.NoError(t, p(context.Background(), msg))

		assert.Equal(t, 42, gotEvt.AccountNum)
		assert.Equal(t, "account.applied", got.Type)
		assert.Equal(t, "accounts", got.Source)
		assert.Equal(t, "acct-42", got.CorrelationID)
		assert.Equal(t, "acct/applied/v1/42", got.Topic)
		assert.Equal(t, 2, got.Redeliveries)
		assert.False(t, got.Timestamp.IsZero())
		_, err := uuid.Parse(got.ID)
		assert.NoError(t, err, "envelope ID should be a uuid")
	})

	t.Run("decode failure is permanent", func(t *testing.T) {
		p := event.Typed("account.applied", "accounts", nil,
			func(context.Context, event.Envelope, testEvent) error {
				t.Fatal("handler must not run")
				return nil
			})

		err := p(context.Background(), &broker.Message{Topic: "t", Payload: []byte(`garbage`)})
		require.Error(t, err)
		assert.Equal(t, choreoerrors.CategoryPermanent, choreoerrors.Categorize(err))
	})

	t.Run("nil correlate leaves correlation empty", func(t *testing.T) {
		p := event.Typed("account.applied", "accounts", nil,
			func(_ context.Context, env event.Envelope, _ testEvent) error {
				assert.Empty(t, env.CorrelationID)
				return nil
			})
		require.NoError(t, p(context.Background(), &broker.Message{Topic: "t", Payload: []byte(`{}`)}))
	})
}
