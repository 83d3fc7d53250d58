package registry

import (
	"context"
	"database/sql"
	"fmt"

	"corebank/pkg/platform/sentinel"
)

// PostgresReservationStore persists namespace bindings in PostgreSQL. The
// primary key on (namespace, value) plus ON CONFLICT DO NOTHING gives the
// linearizable insert-if-absent the registry contract requires.
type PostgresReservationStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed reservation store.
func NewPostgres(db *sql.DB) *PostgresReservationStore {
	return &PostgresReservationStore{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresReservationStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identifier_reservations (
			namespace TEXT NOT NULL,
			value TEXT NOT NULL,
			account_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, value)
		)`)
	if err != nil {
		return fmt.Errorf("migrate identifier reservations: %w", err)
	}
	return nil
}

func (s *PostgresReservationStore) PutIfAbsent(ctx context.Context, ns Namespace, value, accountID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO identifier_reservations (namespace, value, account_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, value) DO NOTHING`,
		string(ns), value, accountID)
	if err != nil {
		return fmt.Errorf("reserve identifier: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve identifier: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %q taken: %w", ns, value, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresReservationStore) Release(ctx context.Context, ns Namespace, value string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM identifier_reservations WHERE namespace = $1 AND value = $2`,
		string(ns), value)
	if err != nil {
		return fmt.Errorf("release identifier: %w", err)
	}
	return nil
}

func (s *PostgresReservationStore) Lookup(ctx context.Context, ns Namespace, value string) (string, error) {
	var accountID string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM identifier_reservations WHERE namespace = $1 AND value = $2`,
		string(ns), value).Scan(&accountID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %q: %w", ns, value, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup identifier: %w", err)
	}
	return accountID, nil
}
