package store

import (
	"context"
	"fmt"
	"sync"

	"corebank/internal/account/models"
	"corebank/pkg/platform/sentinel"
)

// record pairs an account with its own mutex so ledgers on different accounts
// never contend with each other. The store-level lock guards only the maps.
type record struct {
	mu      sync.Mutex
	account *models.Account
}

// InMemoryAccountStore keeps accounts in process memory. Default repository
// for development and tests.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*record
	order    []string
	txOwner  map[string]string
	seq      uint64
}

// NewInMemoryAccountStore constructs an empty in-memory account store.
func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		accounts: make(map[string]*record),
		txOwner:  make(map[string]string),
	}
}

func (s *InMemoryAccountStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists: %w", account.ID, sentinel.ErrConflict)
	}
	s.seq++
	account.CreatedSeq = s.seq
	s.accounts[account.ID] = &record{account: account.Clone()}
	s.order = append(s.order, account.ID)
	return nil
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, id string) (*models.Account, error) {
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account.Clone(), nil
}

// Delete unlinks the record from the maps first, then reads its transactions
// under the record mutex. AppendTransaction acquires rec.mu before s.mu, so
// holding both here in the opposite order would invert the lock order.
func (s *InMemoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	rec, ok := s.accounts[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.accounts, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	rec.mu.Lock()
	txIDs := make([]string, 0, len(rec.account.Transactions))
	for _, tx := range rec.account.Transactions {
		txIDs = append(txIDs, tx.ID)
	}
	rec.mu.Unlock()

	s.mu.Lock()
	for _, txID := range txIDs {
		delete(s.txOwner, txID)
	}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryAccountStore) Snapshot(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	recs := make([]*record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.accounts[id]; ok {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	out := make([]*models.Account, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		cp := *rec.account
		rec.mu.Unlock()
		cp.Transactions = nil
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryAccountStore) UpdatePinHash(_ context.Context, id, pinHash string) error {
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.account.Credentials.PinHash = pinHash
	return nil
}

func (s *InMemoryAccountStore) AppendTransaction(
	_ context.Context,
	accountID string,
	tx models.Transaction,
	expectedVersion uint64,
) error {
	rec, err := s.get(accountID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.account.Version != expectedVersion {
		return fmt.Errorf("account %s version %d != expected %d: %w",
			accountID, rec.account.Version, expectedVersion, sentinel.ErrConflict)
	}
	rec.account.Transactions = append(rec.account.Transactions, tx)
	rec.account.Balance += tx.SignedAmount
	rec.account.Version++

	s.mu.Lock()
	s.txOwner[tx.ID] = accountID
	s.mu.Unlock()
	return nil
}

func (s *InMemoryAccountStore) SettleTransaction(
	_ context.Context,
	transactionID string,
	outcome models.TransactionStatus,
) error {
	s.mu.RLock()
	accountID, ok := s.txOwner[transactionID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
	}

	rec, err := s.get(accountID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := range rec.account.Transactions {
		tx := &rec.account.Transactions[i]
		if tx.ID != transactionID {
			continue
		}
		switch {
		case tx.Status == outcome:
			return nil
		case tx.Status.Terminal():
			return fmt.Errorf("transaction %s already %s: %w",
				transactionID, tx.Status, sentinel.ErrInvalidState)
		default:
			tx.Status = outcome
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
}

func (s *InMemoryAccountStore) TransactionOwner(_ context.Context, transactionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.txOwner[transactionID]
	if !ok {
		return "", fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
	}
	return accountID, nil
}

func (s *InMemoryAccountStore) get(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	return rec, nil
}
