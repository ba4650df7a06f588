// Package errors provides the error taxonomy and retry support for the
// event pipeline.
//
// The taxonomy mirrors the failure modes of the messaging core:
//   - Decode failures: an inbound payload does not match the expected
//     shape. Permanent; the message is left unacknowledged and the
//     transport redelivers it.
//   - Publish failures: an outbound payload cannot be serialized or the
//     broker rejects it. Logged and dropped by direct publishers,
//     retried by the outbox dispatcher.
//   - Connection failures: the broker is unreachable or rejects the
//     credentials. Transient; dial and dispatch paths retry with
//     exponential backoff.
package errors

import (
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: broker unreachable, publish backpressure.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: malformed payloads, rejected credentials.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// DecodeError indicates an inbound payload did not match the expected
// event shape.
type DecodeError struct {
	// Topic is the inbound topic the payload arrived on.
	Topic string

	// EventType names the expected payload type.
	EventType string

	// Err is the underlying unmarshal error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("decode %s event on topic %s: %s", e.EventType, e.Topic, e.Err)
	}
	return fmt.Sprintf("decode %s event: %s", e.EventType, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PublishError indicates an outbound event could not be serialized or
// handed to the broker.
type PublishError struct {
	// Topic is the resolved publish topic.
	Topic string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %s", e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConnectionError indicates the broker could not be reached or refused
// the connection.
type ConnectionError struct {
	// Host is the broker host that was dialed.
	Host string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to broker %s: %s", e.Host, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return CategoryPermanent // redelivering the same bytes won't decode better
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return CategoryTransient
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe).
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
