//go:build integration

package registry

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"corebank/pkg/platform/sentinel"
	"corebank/pkg/testutil/containers"
)

type PostgresReservationStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *PostgresReservationStore
}

func (s *PostgresReservationStoreSuite) SetupSuite() {
	pg := containers.NewPostgresContainer(s.T())

	db, err := sql.Open("postgres", pg.DSN)
	require.NoError(s.T(), err)
	s.db = db

	s.store = NewPostgres(db)
	require.NoError(s.T(), s.store.Migrate(context.Background()))
}

func (s *PostgresReservationStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresReservationStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), `TRUNCATE identifier_reservations`)
	require.NoError(s.T(), err)
}

func TestPostgresReservationStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresReservationStoreSuite))
}

func (s *PostgresReservationStoreSuite) TestPutIfAbsentAndLookup() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceEmail, "a@x.com", "acct-1"))

	owner, err := s.store.Lookup(ctx, NamespaceEmail, "a@x.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "acct-1", owner)
}

func (s *PostgresReservationStoreSuite) TestPutIfAbsentConflict() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceEmail, "a@x.com", "acct-1"))

	err := s.store.PutIfAbsent(ctx, NamespaceEmail, "a@x.com", "acct-2")
	assert.ErrorIs(s.T(), err, sentinel.ErrConflict)

	// Original owner is untouched.
	owner, err := s.store.Lookup(ctx, NamespaceEmail, "a@x.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "acct-1", owner)
}

func (s *PostgresReservationStoreSuite) TestNamespacesAreSeparate() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceEmail, "shared-value", "acct-1"))
	assert.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceUPIHandle, "shared-value", "acct-2"))
}

func (s *PostgresReservationStoreSuite) TestReleaseFreesValue() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceEmail, "a@x.com", "acct-1"))
	require.NoError(s.T(), s.store.Release(ctx, NamespaceEmail, "a@x.com"))

	_, err := s.store.Lookup(ctx, NamespaceEmail, "a@x.com")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
	assert.NoError(s.T(), s.store.PutIfAbsent(ctx, NamespaceEmail, "a@x.com", "acct-2"))
}
