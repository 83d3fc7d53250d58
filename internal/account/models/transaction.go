package models

import "time"

// TransactionKind classifies a ledger entry. Kinds determine the sign of the
// recorded amount: credits increase the balance, debits decrease it.
type TransactionKind string

const (
	KindLocalTransferOut         TransactionKind = "local-transfer-out"
	KindInternationalTransferOut TransactionKind = "international-transfer-out"
	KindAddFunds                 TransactionKind = "add-funds"
	KindReceived                 TransactionKind = "received"
	KindUPITransfer              TransactionKind = "upi-transfer"
	KindCardPayment              TransactionKind = "card-payment"
)

// Valid reports whether the kind is known.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindLocalTransferOut, KindInternationalTransferOut, KindAddFunds,
		KindReceived, KindUPITransfer, KindCardPayment:
		return true
	}
	return false
}

// Debits reports whether the kind reduces the balance.
func (k TransactionKind) Debits() bool {
	switch k {
	case KindLocalTransferOut, KindInternationalTransferOut, KindUPITransfer, KindCardPayment:
		return true
	}
	return false
}

// TransactionStatus tracks settlement. Pending may transition once to
// completed or failed; both are terminal.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Valid reports whether the status is known.
func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// Terminal reports whether the status admits no further transition.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Counterparty describes the other side of a movement. Free-form; never
// validated against the identity registry.
type Counterparty struct {
	Name          string `json:"name,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	UPIHandle     string `json:"upiHandle,omitempty"`
	Routing       string `json:"routing,omitempty"`
}

// Transaction is an immutable ledger entry. SignedAmount is positive for
// credits, negative for debits; it never changes after append, settlement
// included.
type Transaction struct {
	ID           string            `json:"id"`
	Kind         TransactionKind   `json:"kind"`
	SignedAmount int64             `json:"signedAmount"`
	Counterparty Counterparty      `json:"counterparty"`
	Status       TransactionStatus `json:"status"`
	CardLastFour string            `json:"cardLastFour,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// TransactionDraft is the caller-supplied shape of a new ledger entry.
// Amount is a positive magnitude; the ledger derives the sign from Kind.
type TransactionDraft struct {
	Kind         TransactionKind
	Amount       int64
	Counterparty Counterparty
	Status       TransactionStatus
	CardLastFour string
	Notes        string
}
