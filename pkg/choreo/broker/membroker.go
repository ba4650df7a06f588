package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
)

// MemConfig configures the in-memory broker.
type MemConfig struct {
	// BufferSize is the delivery channel buffer per queue.
	// Default: 256
	BufferSize int

	// RedeliveryDelay is how long an unacknowledged message waits
	// before it is requeued. Default: 1s
	RedeliveryDelay time.Duration

	// MaxRedeliveries limits redelivery attempts per message.
	// Default: 0 (unlimited - a poison message circulates forever,
	// matching the transport contract of no dead-lettering).
	MaxRedeliveries int

	// OnReceipt is called with the asynchronous outcome of each publish.
	OnReceipt func(Receipt)

	// OnDrop is called when a message exhausts MaxRedeliveries.
	OnDrop func(queue string, msg *Message)
}

// DefaultMemConfig provides reasonable defaults.
var DefaultMemConfig = MemConfig{
	BufferSize:      256,
	RedeliveryDelay: 1 * time.Second,
}

// MemBroker is an in-memory Broker with durable-queue semantics:
// at-least-once delivery, explicit acknowledgment, and redelivery of
// unacknowledged messages. Queues survive for the broker's lifetime
// but not across processes.
type MemBroker struct {
	config MemConfig

	mu     sync.RWMutex
	queues map[string]*memQueue

	connected atomic.Bool
	closed    atomic.Bool
	closeCh   chan struct{}
}

// memQueue is a durable queue bound to topic subscriptions with one
// exclusive consumer.
type memQueue struct {
	name          string
	subscriptions []string
	deliveries    chan *delivery
	handler       Handler
	done          chan struct{}
	broker        *MemBroker
}

type delivery struct {
	topic        string
	payload      []byte
	redeliveries int
}

// NewMem creates a disconnected in-memory broker.
func NewMem(config MemConfig) *MemBroker {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultMemConfig.BufferSize
	}
	if config.RedeliveryDelay <= 0 {
		config.RedeliveryDelay = DefaultMemConfig.RedeliveryDelay
	}

	return &MemBroker{
		config:  config,
		queues:  make(map[string]*memQueue),
		closeCh: make(chan struct{}),
	}
}

// Connect validates the connection parameters and brings the broker
// online. A real transport would dial here; the in-memory broker only
// checks that credentials are present, so tests can exercise the
// connection-failure path.
func (b *MemBroker) Connect(params ConnectionParams) error {
	if params.Host == "" {
		return &choreoerrors.ConnectionError{Host: params.Host, Err: fmt.Errorf("host is required")}
	}
	if params.Username == "" || params.Password == "" {
		return &choreoerrors.ConnectionError{Host: params.Host, Err: fmt.Errorf("authentication rejected")}
	}
	b.connected.Store(true)
	return nil
}

// Dial creates an in-memory broker and connects it, retrying transient
// failures per retryCfg. On failure the caller keeps running without
// active consumption; there is no background re-attempt.
func Dial(params ConnectionParams, config MemConfig, retryCfg choreoerrors.RetryConfig) (*MemBroker, error) {
	result := choreoerrors.WithRetry(retryCfg, func() (*MemBroker, error) {
		b := NewMem(config)
		if err := b.Connect(params); err != nil {
			return nil, err
		}
		return b, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Value, nil
}

// Publish sends payload to all queues with a matching subscription.
//
// The returned error covers hand-off to the transport only; the
// delivery outcome is reported through OnReceipt, mirroring a
// persistent publisher's ack/nack listener.
func (b *MemBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.checkUsable(topic); err != nil {
		b.notifyReceipt(Receipt{Topic: topic, Err: err})
		return err
	}

	b.mu.RLock()
	targets := make([]*memQueue, 0, len(b.queues))
	for _, q := range b.queues {
		if matchesAny(q.subscriptions, topic) {
			targets = append(targets, q)
		}
	}
	b.mu.RUnlock()

	for _, q := range targets {
		d := &delivery{topic: topic, payload: payload}
		select {
		case q.deliveries <- d:
		case <-ctx.Done():
			err := &choreoerrors.PublishError{Topic: topic, Err: ctx.Err()}
			b.notifyReceipt(Receipt{Topic: topic, Err: err})
			return err
		case <-b.closeCh:
			err := &choreoerrors.PublishError{Topic: topic, Err: fmt.Errorf("broker closed during publish")}
			b.notifyReceipt(Receipt{Topic: topic, Err: err})
			return err
		}
	}

	b.notifyReceipt(Receipt{Topic: topic})
	return nil
}

// Subscribe binds a durable queue to the given subscriptions and starts
// its exclusive consumer. Binding the same queue twice is an error.
func (b *MemBroker) Subscribe(queue string, subscriptions []string, h Handler) error {
	if err := b.checkUsable(queue); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.queues[queue]; exists {
		return fmt.Errorf("queue %q already has an exclusive consumer", queue)
	}

	q := &memQueue{
		name:          queue,
		subscriptions: subscriptions,
		deliveries:    make(chan *delivery, b.config.BufferSize),
		handler:       h,
		done:          make(chan struct{}),
		broker:        b,
	}
	b.queues[queue] = q

	go q.consume()
	return nil
}

// Close shuts down the broker and all queue consumers.
func (b *MemBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // already closed
	}

	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		close(q.done)
	}
	return nil
}

func (b *MemBroker) checkUsable(ref string) error {
	if b.closed.Load() {
		return &choreoerrors.PublishError{Topic: ref, Err: fmt.Errorf("broker is closed")}
	}
	if !b.connected.Load() {
		return &choreoerrors.ConnectionError{Err: fmt.Errorf("broker is not connected")}
	}
	return nil
}

func (b *MemBroker) notifyReceipt(r Receipt) {
	if b.config.OnReceipt != nil {
		b.config.OnReceipt(r)
	}
}

// consume delivers messages to the queue's handler, requeueing anything
// the handler does not acknowledge.
func (q *memQueue) consume() {
	for {
		select {
		case d := <-q.deliveries:
			msg := &Message{
				Topic:        d.topic,
				Payload:      d.payload,
				Redeliveries: d.redeliveries,
			}
			q.handler(context.Background(), msg)

			if !msg.Acked() {
				q.scheduleRedelivery(d)
			}

		case <-q.done:
			return
		}
	}
}

func (q *memQueue) scheduleRedelivery(d *delivery) {
	max := q.broker.config.MaxRedeliveries
	if max > 0 && d.redeliveries >= max {
		if q.broker.config.OnDrop != nil {
			q.broker.config.OnDrop(q.name, &Message{
				Topic:        d.topic,
				Payload:      d.payload,
				Redeliveries: d.redeliveries,
			})
		}
		return
	}

	next := &delivery{
		topic:        d.topic,
		payload:      d.payload,
		redeliveries: d.redeliveries + 1,
	}
	time.AfterFunc(q.broker.config.RedeliveryDelay, func() {
		select {
		case q.deliveries <- next:
		case <-q.done:
		}
	})
}
