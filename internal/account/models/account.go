package models

import "time"

// CardType enumerates the card networks accepted at signup.
type CardType string

const (
	CardVisa       CardType = "visa"
	CardMastercard CardType = "mastercard"
)

// Valid reports whether the card type is one of the accepted networks.
func (c CardType) Valid() bool {
	return c == CardVisa || c == CardMastercard
}

// Identifiers holds the five namespace values that identify an account.
// Email, AccountNumber, and CardNumber are required; UPIHandle and KYCID are
// optional and participate in uniqueness only when present.
type Identifiers struct {
	Email         string
	AccountNumber string
	CardNumber    string
	UPIHandle     string
	KYCID         string
}

// Credentials holds one-way hashes only. Plaintext secrets never live on the
// account after signup.
type Credentials struct {
	PasswordHash string `json:"-"`
	PinHash      string `json:"-"`
}

// Profile is descriptive holder data with no uniqueness constraints.
type Profile struct {
	FullName    string
	PhoneNumber string
	Address     string
	CardType    CardType
	CardExpiry  string
	CardCVC     string `json:"-"`
}

// Account is one holder's financial identity. Balance always equals the fold
// of Transactions' signed amounts; Version is the optimistic concurrency
// counter covering balance and transaction history together.
type Account struct {
	ID          string
	Identifiers Identifiers
	Credentials Credentials
	Profile     Profile

	Balance      int64
	Transactions []Transaction

	Version    uint64
	CreatedSeq uint64
	CreatedAt  time.Time
}

// Clone returns a deep copy so store snapshots never alias live state.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Transactions = make([]Transaction, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}
