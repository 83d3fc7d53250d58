// Package store defines the durable account repository boundary. Stores are
// interface-driven so the domain logic stays testable and the in-memory and
// Postgres implementations can be swapped without rewiring business code.
//
// Error contract: stores return sentinel errors (pkg/platform/sentinel) for
// resource facts — ErrNotFound for missing records, ErrConflict for version
// mismatches, ErrInvalidState for illegal settlement transitions — and
// wrapped infrastructure errors otherwise. Services translate these into
// coded domain errors.
package store

import (
	"context"

	"corebank/internal/account/models"
)

// AccountStore persists accounts and their embedded transaction history.
type AccountStore interface {
	// Create persists a new account. The store assigns CreatedSeq.
	Create(ctx context.Context, account *models.Account) error

	// FindByID returns the full account including transaction history.
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// Delete removes an account. Used only for signup rollback when identifier
	// reservation succeeded but a later step failed.
	Delete(ctx context.Context, id string) error

	// Snapshot enumerates accounts in creation order without transaction
	// history. It is a stable copy: concurrent writers never mutate the
	// returned values, and the enumeration never holds ledger-side locks
	// beyond the per-record copy.
	Snapshot(ctx context.Context) ([]*models.Account, error)

	// UpdatePinHash replaces the stored PIN hash.
	UpdatePinHash(ctx context.Context, id, pinHash string) error

	// AppendTransaction atomically appends tx and applies its signed amount to
	// the balance, guarded by the account version: if the stored version does
	// not equal expectedVersion the append is rejected with ErrConflict and
	// nothing changes.
	AppendTransaction(ctx context.Context, accountID string, tx models.Transaction, expectedVersion uint64) error

	// SettleTransaction applies a terminal outcome to a transaction under the
	// account's atomic scope. Re-settling to the same terminal outcome is a
	// no-op; a different terminal outcome returns ErrInvalidState.
	SettleTransaction(ctx context.Context, transactionID string, outcome models.TransactionStatus) error

	// TransactionOwner returns the ID of the account whose ledger holds the
	// transaction, or ErrNotFound when no such transaction exists.
	TransactionOwner(ctx context.Context, transactionID string) (string, error)
}
