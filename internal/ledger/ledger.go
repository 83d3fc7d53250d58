// Package ledger is the append-only money movement log. Entries carry a
// signed amount whose sign is derived from the transaction kind; once
// committed an entry's amount never changes, settlement included. The
// account balance is always the fold of the account's signed amounts.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corebank/internal/account/models"
	"corebank/internal/account/store"
	"corebank/internal/platform/metrics"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
)

// maxAppendRetries bounds the optimistic-concurrency retry loop. Contention
// on a single account is rare enough that losing this many races in a row
// indicates something pathological.
const maxAppendRetries = 8

// ErrInsufficientFunds rejects a debit that would overdraw the account.
var ErrInsufficientFunds = dErrors.New(dErrors.CodeInvariantViolation, "insufficient funds")

// Ledger appends and reads transactions through the account store's
// version-guarded primitives.
type Ledger struct {
	store   store.AccountStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a Ledger.
func New(st store.AccountStore, logger *slog.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{store: st, logger: logger, metrics: m}
}

// Append validates the draft, signs its amount by kind, checks funds for
// debits, and commits. The read-check-commit cycle is guarded by the account
// version: if a concurrent append wins the race the cycle restarts from a
// fresh read, so the funds check always holds against the balance it
// committed with.
func (l *Ledger) Append(ctx context.Context, accountID string, draft models.TransactionDraft) (*models.Transaction, error) {
	if !draft.Kind.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown transaction kind")
	}
	if draft.Amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	status := draft.Status
	if status == "" {
		status = models.StatusCompleted
	}
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown transaction status")
	}

	tx := models.Transaction{
		ID:           uuid.NewString(),
		Kind:         draft.Kind,
		SignedAmount: draft.Amount,
		Counterparty: draft.Counterparty,
		Status:       status,
		CardLastFour: draft.CardLastFour,
		Notes:        draft.Notes,
		CreatedAt:    time.Now().UTC(),
	}
	if draft.Kind.Debits() {
		tx.SignedAmount = -draft.Amount
	}

	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		account, err := l.store.FindByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
		}

		if tx.SignedAmount < 0 && account.Balance+tx.SignedAmount < 0 {
			l.metrics.InsufficientFunds.Inc()
			return nil, ErrInsufficientFunds
		}

		err = l.store.AppendTransaction(ctx, accountID, tx, account.Version)
		if err == nil {
			l.metrics.LedgerAppends.WithLabelValues(string(tx.Kind)).Inc()
			return &tx, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			l.logger.Debug("append lost version race, retrying",
				"account_id", accountID, "attempt", attempt+1)
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transaction append failed")
	}
	return nil, dErrors.New(dErrors.CodeTimeout, "account too contended, try again")
}

// ListRecent returns up to limit transactions, most recent first. A
// non-positive limit returns the full history.
func (l *Ledger) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	account, err := l.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
	}

	history := account.Transactions
	out := make([]models.Transaction, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Settle applies a terminal outcome to a pending transaction. Settlement is
// idempotent: repeating the same outcome is a no-op, while a conflicting
// terminal outcome is rejected.
func (l *Ledger) Settle(ctx context.Context, transactionID string, outcome models.TransactionStatus) error {
	if !outcome.Terminal() {
		return dErrors.New(dErrors.CodeValidation, "settlement outcome must be completed or failed")
	}
	err := l.store.SettleTransaction(ctx, transactionID, outcome)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "transaction not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "transaction already settled with a different outcome")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "settlement failed")
	}
}

// Balance reads the current folded balance.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := l.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
	}
	return account.Balance, nil
}
