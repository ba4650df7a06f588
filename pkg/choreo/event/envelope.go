package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
)

// Envelope is the in-process metadata attached to a decoded event. The
// wire format stays bare domain JSON; the envelope is built at the
// consume boundary and travels with the typed payload through handlers.
type Envelope struct {
	// ID uniquely identifies this delivery.
	ID string

	// Type names the domain event (e.g. "order.confirmed").
	Type string

	// Source is the service that is handling the event.
	Source string

	// CorrelationID ties the event to its domain entity, extracted from
	// the decoded payload. Idempotent consumers deduplicate on
	// (Type, CorrelationID).
	CorrelationID string

	// CausationID is the ID of the envelope whose handling produced
	// this event, when known.
	CausationID string

	// Topic the event arrived on.
	Topic string

	// Redeliveries counts prior delivery attempts.
	Redeliveries int

	// Timestamp is when the envelope was built.
	Timestamp time.Time

	// Payload is the raw wire payload.
	Payload json.RawMessage
}

// Typed adapts a strongly typed handler into a Processor. The payload
// is decoded exactly once at the boundary; a decode failure is a
// permanent processing failure. correlate extracts the correlation ID
// from the decoded event and may be nil.
func Typed[T any](eventType, source string, correlate func(T) string, handle func(ctx context.Context, env Envelope, evt T) error) Processor {
	return func(ctx context.Context, msg *broker.Message) error {
		evt, err := Decode[T](msg.Topic, msg.Payload)
		if err != nil {
			return err
		}

		env := Envelope{
			ID:           uuid.NewString(),
			Type:         eventType,
			Source:       source,
			Topic:        msg.Topic,
			Redeliveries: msg.Redeliveries,
			Timestamp:    time.Now(),
			Payload:      msg.Payload,
		}
		if correlate != nil {
			env.CorrelationID = correlate(evt)
		}

		return handle(ctx, env, evt)
	}
}
