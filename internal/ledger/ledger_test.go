package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"corebank/internal/account/models"
	"corebank/internal/account/store"
	"corebank/internal/platform/metrics"
	dErrors "corebank/pkg/domain-errors"
)

type LedgerSuite struct {
	suite.Suite
	store  *store.InMemoryAccountStore
	ledger *Ledger
}

func (s *LedgerSuite) SetupTest() {
	s.store = store.NewInMemoryAccountStore()
	s.ledger = New(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewForTest())
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) newAccount() string {
	acct := &models.Account{
		ID:        uuid.NewString(),
		Profile:   models.Profile{FullName: "Holder"},
		CreatedAt: time.Now(),
	}
	require.NoError(s.T(), s.store.Create(context.Background(), acct))
	return acct.ID
}

func (s *LedgerSuite) fund(accountID string, amount int64) {
	_, err := s.ledger.Append(context.Background(), accountID, models.TransactionDraft{
		Kind:   models.KindAddFunds,
		Amount: amount,
	})
	require.NoError(s.T(), err)
}

func (s *LedgerSuite) balance(accountID string) int64 {
	balance, err := s.ledger.Balance(context.Background(), accountID)
	require.NoError(s.T(), err)
	return balance
}

func (s *LedgerSuite) TestCreditIncreasesBalance() {
	id := s.newAccount()

	tx, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindAddFunds,
		Amount: 500,
	})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 500, tx.SignedAmount)
	assert.Equal(s.T(), models.StatusCompleted, tx.Status)
	assert.EqualValues(s.T(), 500, s.balance(id))
}

func (s *LedgerSuite) TestDebitRecordsNegativeAmount() {
	id := s.newAccount()
	s.fund(id, 1000)

	tx, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindUPITransfer,
		Amount: 300,
	})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), -300, tx.SignedAmount)
	assert.EqualValues(s.T(), 700, s.balance(id))
}

func (s *LedgerSuite) TestDebitRejectedWhenOverdrawing() {
	id := s.newAccount()
	s.fund(id, 100)

	_, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindLocalTransferOut,
		Amount: 101,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientFunds)
	assert.EqualValues(s.T(), 100, s.balance(id))
}

func (s *LedgerSuite) TestDebitToExactlyZeroAllowed() {
	id := s.newAccount()
	s.fund(id, 100)

	_, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindCardPayment,
		Amount: 100,
	})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 0, s.balance(id))
}

func (s *LedgerSuite) TestRejectsUnknownKindAndNonPositiveAmount() {
	id := s.newAccount()

	_, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{Kind: "wire", Amount: 10})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	for _, amount := range []int64{0, -5} {
		_, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
			Kind:   models.KindAddFunds,
			Amount: amount,
		})
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation), "amount %d", amount)
	}
}

func (s *LedgerSuite) TestAppendUnknownAccount() {
	_, err := s.ledger.Append(context.Background(), uuid.NewString(), models.TransactionDraft{
		Kind:   models.KindAddFunds,
		Amount: 10,
	})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerSuite) TestConcurrentAppendsKeepBalanceConsistent() {
	id := s.newAccount()
	s.fund(id, 10_000)

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := models.KindAddFunds
			if i%2 == 0 {
				kind = models.KindUPITransfer
			}
			_, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
				Kind:   kind,
				Amount: 100,
			})
			assert.NoError(s.T(), err)
		}(i)
	}
	wg.Wait()

	// 6 credits and 6 debits of 100 cancel out.
	assert.EqualValues(s.T(), 10_000, s.balance(id))

	account, err := s.store.FindByID(context.Background(), id)
	require.NoError(s.T(), err)
	var folded int64
	for _, tx := range account.Transactions {
		folded += tx.SignedAmount
	}
	assert.Equal(s.T(), account.Balance, folded)
}

func (s *LedgerSuite) TestConcurrentDebitsNeverOverdraw() {
	id := s.newAccount()
	s.fund(id, 500)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each debit is 100; only five can fit in 500.
			s.ledger.Append(context.Background(), id, models.TransactionDraft{ //nolint:errcheck
				Kind:   models.KindLocalTransferOut,
				Amount: 100,
			})
		}()
	}
	wg.Wait()

	// However the races resolve, the balance never goes negative and always
	// equals the fold of committed amounts.
	balance := s.balance(id)
	assert.GreaterOrEqual(s.T(), balance, int64(0))

	account, err := s.store.FindByID(context.Background(), id)
	require.NoError(s.T(), err)
	var folded int64
	for _, tx := range account.Transactions {
		folded += tx.SignedAmount
	}
	assert.Equal(s.T(), balance, folded)
}

func (s *LedgerSuite) TestListRecentMostRecentFirst() {
	id := s.newAccount()
	for i := 0; i < 5; i++ {
		s.fund(id, int64(100+i))
	}

	recent, err := s.ledger.ListRecent(context.Background(), id, 3)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 3)
	assert.EqualValues(s.T(), 104, recent[0].SignedAmount)
	assert.EqualValues(s.T(), 103, recent[1].SignedAmount)
	assert.EqualValues(s.T(), 102, recent[2].SignedAmount)
}

func (s *LedgerSuite) TestListRecentNoLimitReturnsAll() {
	id := s.newAccount()
	s.fund(id, 100)
	s.fund(id, 200)

	recent, err := s.ledger.ListRecent(context.Background(), id, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 2)
	assert.EqualValues(s.T(), 200, recent[0].SignedAmount)
}

func (s *LedgerSuite) TestSettlePendingToCompleted() {
	id := s.newAccount()
	s.fund(id, 1000)

	tx, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindInternationalTransferOut,
		Amount: 400,
		Status: models.StatusPending,
	})
	require.NoError(s.T(), err)
	balanceBefore := s.balance(id)

	require.NoError(s.T(), s.ledger.Settle(context.Background(), tx.ID, models.StatusCompleted))

	// Settlement changes status only, never the amount or the balance.
	assert.Equal(s.T(), balanceBefore, s.balance(id))
	account, err := s.store.FindByID(context.Background(), id)
	require.NoError(s.T(), err)
	last := account.Transactions[len(account.Transactions)-1]
	assert.Equal(s.T(), models.StatusCompleted, last.Status)
	assert.EqualValues(s.T(), -400, last.SignedAmount)
}

func (s *LedgerSuite) TestSettleIdempotentSameOutcome() {
	id := s.newAccount()
	s.fund(id, 1000)
	tx, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindUPITransfer,
		Amount: 100,
		Status: models.StatusPending,
	})
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.ledger.Settle(context.Background(), tx.ID, models.StatusFailed))
	assert.NoError(s.T(), s.ledger.Settle(context.Background(), tx.ID, models.StatusFailed))
}

func (s *LedgerSuite) TestSettleConflictingOutcomeRejected() {
	id := s.newAccount()
	s.fund(id, 1000)
	tx, err := s.ledger.Append(context.Background(), id, models.TransactionDraft{
		Kind:   models.KindUPITransfer,
		Amount: 100,
		Status: models.StatusPending,
	})
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.ledger.Settle(context.Background(), tx.ID, models.StatusCompleted))
	err = s.ledger.Settle(context.Background(), tx.ID, models.StatusFailed)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *LedgerSuite) TestSettleRejectsNonTerminalOutcome() {
	err := s.ledger.Settle(context.Background(), uuid.NewString(), models.StatusPending)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LedgerSuite) TestSettleUnknownTransaction() {
	err := s.ledger.Settle(context.Background(), uuid.NewString(), models.StatusCompleted)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}
