// Package decision holds the randomness used by the demo services:
// fraud flagging, synthetic identifiers, and value pickers. Services
// receive deciders and generators as dependencies so tests can pin the
// outcome.
package decision

import (
	"math/rand/v2"
)

// FraudDecider decides whether a transaction is flagged as fraudulent.
type FraudDecider interface {
	IsFraud() bool
}

// RandomDecider flags transactions with a fixed probability.
type RandomDecider struct {
	probability float64
}

// NewRandomDecider creates a decider flagging transactions with the
// given probability. Values outside [0, 1] are clamped.
func NewRandomDecider(probability float64) *RandomDecider {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &RandomDecider{probability: probability}
}

// IsFraud reports the coin flip outcome.
func (d *RandomDecider) IsFraud() bool {
	return rand.Float64() < d.probability
}

// StaticDecider always returns the configured outcome. For tests.
type StaticDecider bool

// IsFraud returns the fixed outcome.
func (d StaticDecider) IsFraud() bool { return bool(d) }

// OneOf returns a uniformly random element of choices.
// Panics on an empty slice.
func OneOf[T any](choices []T) T {
	return choices[rand.IntN(len(choices))]
}

// AccountNumber generates a random 10-digit account number whose
// leading digit is never zero.
func AccountNumber() int64 {
	return 1_000_000_000*(1+rand.Int64N(9)) + rand.Int64N(1_000_000_000)
}

// DetectionNumber generates an identifier for a fraud incident.
func DetectionNumber() int {
	return rand.IntN(1_000_000_000)
}

// TransactionNumber generates an identifier for a banking transaction.
func TransactionNumber() int {
	return rand.IntN(1_000_000_000)
}

// ReservationNumber generates an identifier for a stock reservation.
func ReservationNumber() int {
	return rand.IntN(1_000_000_000)
}

// PaymentNumber generates an identifier for a payment.
func PaymentNumber() int {
	return rand.IntN(1_000_000_000)
}

// ShipmentNumber generates an identifier for a shipment.
func ShipmentNumber() int {
	return rand.IntN(1_000_000_000)
}

// TrackingNumber generates a carrier tracking number.
func TrackingNumber() int {
	return rand.IntN(1_000_000_000)
}

// Amount generates a random monetary amount in [0, 100) rounded to
// two decimal places.
func Amount() float64 {
	return float64(rand.IntN(10_000)) / 100
}

// IntBetween generates a random integer in [lo, hi].
func IntBetween(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}
