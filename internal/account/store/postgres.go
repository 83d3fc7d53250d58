package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"corebank/internal/account/models"
	"corebank/pkg/platform/sentinel"
)

// PostgresAccountStore persists accounts in PostgreSQL. Pure I/O — balance
// rules and settlement semantics live in the ledger; this store only supplies
// the atomic primitives (version-guarded update, row lock on settle).
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed account store.
func NewPostgres(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL,
	account_number TEXT NOT NULL,
	card_number TEXT NOT NULL,
	upi_handle TEXT NOT NULL DEFAULT '',
	kyc_id TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	pin_hash TEXT NOT NULL,
	full_name TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	card_type TEXT NOT NULL,
	card_expiry TEXT NOT NULL,
	card_cvc TEXT NOT NULL,
	balance BIGINT NOT NULL DEFAULT 0,
	version BIGINT NOT NULL DEFAULT 0,
	created_seq BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	signed_amount BIGINT NOT NULL,
	counterparty JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	card_last_four TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	seq BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transactions_account_seq ON transactions (account_id, seq);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresAccountStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, accountsSchema); err != nil {
		return fmt.Errorf("migrate accounts schema: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) Create(ctx context.Context, account *models.Account) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (
			id, email, account_number, card_number, upi_handle, kyc_id,
			password_hash, pin_hash, full_name, phone_number, address,
			card_type, card_expiry, card_cvc, balance, version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_seq`,
		account.ID, account.Identifiers.Email, account.Identifiers.AccountNumber,
		account.Identifiers.CardNumber, account.Identifiers.UPIHandle, account.Identifiers.KYCID,
		account.Credentials.PasswordHash, account.Credentials.PinHash,
		account.Profile.FullName, account.Profile.PhoneNumber, account.Profile.Address,
		string(account.Profile.CardType), account.Profile.CardExpiry, account.Profile.CardCVC,
		account.Balance, account.Version, account.CreatedAt,
	)
	if err := row.Scan(&account.CreatedSeq); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.scanAccount(s.pool.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, signed_amount, counterparty, status, card_last_four, notes, created_at
		FROM transactions WHERE account_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx models.Transaction
		var counterparty []byte
		if err := rows.Scan(&tx.ID, &tx.Kind, &tx.SignedAmount, &counterparty,
			&tx.Status, &tx.CardLastFour, &tx.Notes, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal(counterparty, &tx.Counterparty); err != nil {
			return nil, fmt.Errorf("decode counterparty: %w", err)
		}
		account.Transactions = append(account.Transactions, tx)
	}
	return account, rows.Err()
}

func (s *PostgresAccountStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresAccountStore) Snapshot(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx, selectAccount+` ORDER BY created_seq`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		account, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *PostgresAccountStore) UpdatePinHash(ctx context.Context, id, pinHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET pin_hash = $2 WHERE id = $1`, id, pinHash)
	if err != nil {
		return fmt.Errorf("update pin hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresAccountStore) AppendTransaction(
	ctx context.Context,
	accountID string,
	tx models.Transaction,
	expectedVersion uint64,
) error {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $3, version = version + 1
		WHERE id = $1 AND version = $2`,
		accountID, expectedVersion, tx.SignedAmount)
	if err != nil {
		return fmt.Errorf("guarded balance update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := dbtx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			return fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("account %s version != %d: %w", accountID, expectedVersion, sentinel.ErrConflict)
	}

	counterparty, err := json.Marshal(tx.Counterparty)
	if err != nil {
		return fmt.Errorf("encode counterparty: %w", err)
	}
	if _, err := dbtx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, kind, signed_amount, counterparty, status, card_last_four, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		tx.ID, accountID, string(tx.Kind), tx.SignedAmount, counterparty,
		string(tx.Status), tx.CardLastFour, tx.Notes, tx.CreatedAt); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) SettleTransaction(
	ctx context.Context,
	transactionID string,
	outcome models.TransactionStatus,
) error {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settle: %w", err)
	}
	defer dbtx.Rollback(ctx)

	var current models.TransactionStatus
	err = dbtx.QueryRow(ctx,
		`SELECT status FROM transactions WHERE id = $1 FOR UPDATE`, transactionID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock transaction: %w", err)
	}

	switch {
	case current == outcome:
		return nil
	case current.Terminal():
		return fmt.Errorf("transaction %s already %s: %w", transactionID, current, sentinel.ErrInvalidState)
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1`, transactionID, string(outcome)); err != nil {
		return fmt.Errorf("settle transaction: %w", err)
	}
	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settle: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) TransactionOwner(ctx context.Context, transactionID string) (string, error) {
	var accountID string
	err := s.pool.QueryRow(ctx,
		`SELECT account_id FROM transactions WHERE id = $1`, transactionID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query transaction owner: %w", err)
	}
	return accountID, nil
}

const selectAccount = `
	SELECT id, email, account_number, card_number, upi_handle, kyc_id,
		password_hash, pin_hash, full_name, phone_number, address,
		card_type, card_expiry, card_cvc, balance, version, created_seq, created_at
	FROM accounts`

func (s *PostgresAccountStore) scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Identifiers.Email, &a.Identifiers.AccountNumber,
		&a.Identifiers.CardNumber, &a.Identifiers.UPIHandle, &a.Identifiers.KYCID,
		&a.Credentials.PasswordHash, &a.Credentials.PinHash,
		&a.Profile.FullName, &a.Profile.PhoneNumber, &a.Profile.Address,
		&a.Profile.CardType, &a.Profile.CardExpiry, &a.Profile.CardCVC,
		&a.Balance, &a.Version, &a.CreatedSeq, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
