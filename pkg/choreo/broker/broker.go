// Package broker defines the messaging transport contract the event
// pipeline depends on, plus an in-memory implementation for demos and
// tests.
//
// The contract is deliberately narrow: durable named queues bound to
// topic subscriptions, at-least-once delivery with explicit per-message
// acknowledgment, and publish with an asynchronous delivery receipt.
// Event processors never touch the transport directly; they receive
// deliveries through a Handler and publish through higher-level
// publishers.
package broker

import (
	"context"
	"sync/atomic"
)

// ConnectionParams carries the credentials for a broker connection.
// They are supplied externally (flags or configuration) at startup.
type ConnectionParams struct {
	// Host is the broker address as host:port.
	Host string `yaml:"hostUrl"`

	// VPN is the message VPN / namespace to join.
	VPN string `yaml:"vpnName"`

	// Username for basic authentication.
	Username string `yaml:"userName"`

	// Password for basic authentication.
	Password string `yaml:"password"`
}

// Message is a single delivery from a durable queue.
//
// Handlers must call Ack after successful processing; unacknowledged
// messages are eligible for redelivery.
type Message struct {
	// Topic is the concrete topic the message was published on.
	Topic string

	// Payload is the raw message body (UTF-8 JSON).
	Payload []byte

	// Redeliveries counts prior delivery attempts of this message.
	Redeliveries int

	acked atomic.Bool
}

// Ack acknowledges the message, removing it from the queue.
func (m *Message) Ack() {
	m.acked.Store(true)
}

// Acked reports whether the message has been acknowledged.
func (m *Message) Acked() bool {
	return m.acked.Load()
}

// Handler consumes deliveries from a queue. The transport invokes it on
// a worker context; multiple messages may be in flight concurrently
// across queues.
type Handler func(ctx context.Context, msg *Message)

// Receipt is the asynchronous outcome of a publish. Err is nil for a
// broker ack and non-nil for a nack. The core logs receipts but does
// not act on them.
type Receipt struct {
	Topic string
	Err   error
}

// Broker is the transport seen by the rest of the system.
type Broker interface {
	// Publish sends payload to the given concrete topic. The delivery
	// outcome is reported asynchronously through the receipt listener.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe binds a durable queue to the given topic subscriptions
	// and starts delivering matching messages to h. Subscriptions may
	// use "*" to match a single level and a trailing ">" to match one
	// or more remaining levels.
	Subscribe(queue string, subscriptions []string, h Handler) error

	// Close shuts the connection down. Pending unacknowledged messages
	// are dropped; a durable transport would retain them.
	Close() error
}
