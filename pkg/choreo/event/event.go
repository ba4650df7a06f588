// Package event is the glue between the transport and the domain
// services: typed payload decoding, topic-templated publishing, and the
// processor middleware that carries logging, metrics, and tracing.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/acmedemos/choreo/pkg/choreo/broker"
	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
	"github.com/acmedemos/choreo/pkg/choreo/observability"
	"github.com/acmedemos/choreo/pkg/choreo/topic"
)

// Decode unmarshals an inbound payload into T.
//
// A failure is permanent, and the caller must not acknowledge the
// message: it stays queued for transport-level redelivery.
func Decode[T any](topicName string, payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, &choreoerrors.DecodeError{
			Topic:     topicName,
			EventType: fmt.Sprintf("%T", v),
			Err:       err,
		}
	}
	return v, nil
}

// Publisher emits domain events. The pattern is a topic template whose
// placeholders are filled from params before the payload is sent.
type Publisher interface {
	Publish(ctx context.Context, pattern string, params map[string]any, payload any) error
}

// DirectPublisher hands events straight to the broker with no
// persistence. An event that cannot be serialized or handed off is
// logged and dropped; callers needing delivery beyond the process
// lifetime use the outbox publisher instead.
type DirectPublisher struct {
	broker broker.Broker
	logger *slog.Logger
}

// NewDirectPublisher creates a publisher bound to the given broker.
// A nil logger defaults to slog.Default().
func NewDirectPublisher(b broker.Broker, logger *slog.Logger) *DirectPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectPublisher{broker: b, logger: logger}
}

// Publish renders the topic template, serializes the payload, and hands
// the event to the broker.
func (p *DirectPublisher) Publish(ctx context.Context, pattern string, params map[string]any, payload any) error {
	resolved := topic.Render(pattern, params)

	data, err := json.Marshal(payload)
	if err != nil {
		pubErr := &choreoerrors.PublishError{Topic: resolved, Err: err}
		p.logger.Error("event serialization failed, dropping",
			slog.String("topic", resolved),
			slog.String("error", err.Error()))
		return pubErr
	}

	if err := p.broker.Publish(ctx, resolved, data); err != nil {
		observability.LogPublishError(p.logger, resolved, err)
		return err
	}

	observability.LogPublish(p.logger, resolved)
	return nil
}
