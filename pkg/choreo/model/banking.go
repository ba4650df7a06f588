// Package model declares the wire-level domain types exchanged between
// the pipeline services.
//
// JSON field names are part of the external contract and must not change:
// downstream consumers decode payloads by these exact names (accountNum,
// transactionNum, incidentTimestamp, ...). Timestamps are formatted with
// TimestampLayout in local time without a zone offset.
package model

// AccountStatus is the lifecycle state of a bank account.
type AccountStatus string

// Account lifecycle states.
const (
	StatusApplied   AccountStatus = "APPLIED"
	StatusOpened    AccountStatus = "OPENED"
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusResumed   AccountStatus = "RESUMED"
)

// Account is the cached state of a bank account.
//
// The account-management service owns the authoritative copy; other
// services hold denormalized copies keyed by the same account number and
// updated independently from events.
type Account struct {
	AccountNumber string        `json:"accountNumber"`
	Status        AccountStatus `json:"status"`
	Comment       string        `json:"comment"`
}

// AccountAction is the payload of account lifecycle events
// (applied, opened, suspended, resumed).
type AccountAction struct {
	AccountNum    string `json:"accountNum"`
	AccountAction string `json:"accountAction"`
	Timestamp     string `json:"timestamp"`
}

// Transaction types.
const (
	TransactionDeposit    = "DEPOSIT"
	TransactionTransfer   = "TRANSFER"
	TransactionWithdrawal = "WITHDRAWAL"
)

// Transaction is an ephemeral banking transaction event. It is published
// and consumed but never cached.
type Transaction struct {
	TransactionNum  int     `json:"transactionNum"`
	AccountNum      string  `json:"accountNum"`
	TransactionType string  `json:"transactionType"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Timestamp       string  `json:"timestamp"`
}

// FraudDetected flags a transaction as potentially fraudulent. The
// transaction correlation fields are carried over unchanged from the
// triggering Transaction.
type FraudDetected struct {
	DetectionNum        int     `json:"detectionNum"`
	TransactionNum      int     `json:"transactionNum"`
	AccountNum          string  `json:"accountNum"`
	TransactionType     string  `json:"transactionType"`
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	IncidentDescription string  `json:"incidentDescription"`
	IncidentTimestamp   string  `json:"incidentTimestamp"`
	Timestamp           string  `json:"timestamp"`
}

// FraudConfirmed records the confirmation of a detected fraud incident.
type FraudConfirmed struct {
	DetectionNum        int     `json:"detectionNum"`
	TransactionNum      int     `json:"transactionNum"`
	AccountNum          string  `json:"accountNum"`
	TransactionType     string  `json:"transactionType"`
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	IncidentDescription string  `json:"incidentDescription"`
	FraudConfirmedBy    string  `json:"fraudConfirmedBy"`
	IncidentTimestamp   string  `json:"incidentTimestamp"`
	Timestamp           string  `json:"timestamp"`
}
