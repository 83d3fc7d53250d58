package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"corebank/internal/account/models"
	"corebank/internal/account/store"
	"corebank/internal/audit"
	"corebank/internal/device"
	"corebank/internal/ledger"
	"corebank/internal/lockout"
	"corebank/internal/platform/config"
	"corebank/internal/platform/metrics"
	"corebank/internal/registry"
	"corebank/internal/session"
	"corebank/internal/verifier"
	dErrors "corebank/pkg/domain-errors"
)

// Uses real stores and services end to end; no mocks.
type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryAccountStore
	service *Service
	caller  Caller
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryAccountStore()
	s.service = s.buildService(s.store)
	s.caller = Caller{IP: "198.51.100.7", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0.0.0"}
}

func (s *ServiceSuite) buildService(st store.AccountStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(registry.NewInMemoryReservationStore(), logger)
	if s.service != nil {
		// Share the registry across rebuilt services within a test.
		reg = s.service.registry
	}
	m := metrics.NewForTest()
	ver := verifier.New(s.store, reg, bcrypt.MinCost)
	return New(Deps{
		Store:    st,
		Registry: reg,
		Verifier: ver,
		Ledger:   ledger.New(st, logger, m),
		Sessions: session.NewIssuer("test-signing-key", "corebank-test", time.Hour),
		Lockout: lockout.New(lockout.NewInMemoryStore(), config.LockoutConfig{
			AttemptsPerWindow: 3,
			WindowDuration:    15 * time.Minute,
			LockDuration:      15 * time.Minute,
		}, lockout.WithLogger(logger)),
		Audit:   audit.NewPublisher(64, logger),
		Devices: device.NewService(true),
		Metrics: m,
		Logger:  logger,
	})
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func signupRequest(email string) models.SignupRequest {
	return models.SignupRequest{
		Email:         email,
		Password:      "correct-horse",
		PinCode:       "4321",
		FullName:      "Asha Verma",
		PhoneNumber:   "phone-" + email,
		Address:       "22 Marine Drive",
		AccountNumber: "AC-" + email,
		CardNumber:    "4111-" + email,
		CardCVC:       "123",
		CardExpiry:    "12/30",
		CardType:      "visa",
		UPIHandle:     email + "@upi",
		KYCID:         "",
	}
}

func (s *ServiceSuite) signup(email string) *models.SessionResult {
	result, err := s.service.Signup(context.Background(), signupRequest(email), s.caller)
	require.NoError(s.T(), err)
	return result
}

func (s *ServiceSuite) TestSignupIssuesUsableToken() {
	result := s.signup("a@x.com")

	require.NotEmpty(s.T(), result.Token)
	accountID, err := s.service.sessions.Validate(result.Token)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), result.Profile.ID, accountID)
	assert.Equal(s.T(), "a@x.com", result.Profile.Email)
	assert.EqualValues(s.T(), 0, result.Profile.Balance)
	assert.False(s.T(), result.Profile.CreatedAt.IsZero())
	assert.WithinDuration(s.T(), time.Now().UTC(), result.Profile.CreatedAt, time.Minute)
}

func (s *ServiceSuite) TestSignupNormalizesEmail() {
	req := signupRequest("a@x.com")
	req.Email = "  A@X.com "
	result, err := s.service.Signup(context.Background(), req, s.caller)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a@x.com", result.Profile.Email)
}

func (s *ServiceSuite) TestSignupDuplicateEmailConflict() {
	s.signup("a@x.com")

	dup := signupRequest("a@x.com")
	dup.AccountNumber = "AC-different"
	dup.CardNumber = "4111-different"
	dup.UPIHandle = "different@upi"
	_, err := s.service.Signup(context.Background(), dup, s.caller)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Contains(s.T(), err.Error(), "email")
}

func (s *ServiceSuite) TestSignupDuplicateReportsHighestPriorityNamespace() {
	s.signup("a@x.com")

	dup := signupRequest("b@x.com")
	dup.AccountNumber = "AC-a@x.com"
	dup.CardNumber = "4111-a@x.com"
	dup.UPIHandle = "a@x.com@upi"
	_, err := s.service.Signup(context.Background(), dup, s.caller)
	require.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Contains(s.T(), err.Error(), "accountNumber")
}

type failingCreateStore struct {
	store.AccountStore
}

func (f *failingCreateStore) Create(context.Context, *models.Account) error {
	return errors.New("disk full")
}

func (s *ServiceSuite) TestSignupRollbackFreesIdentifiers() {
	broken := s.buildService(&failingCreateStore{AccountStore: s.store})

	_, err := broken.Signup(context.Background(), signupRequest("a@x.com"), s.caller)
	require.Error(s.T(), err)

	// The reservation must have been released: the same identifiers register
	// cleanly on the healthy service, which shares the registry.
	_, err = s.service.Signup(context.Background(), signupRequest("a@x.com"), s.caller)
	assert.NoError(s.T(), err)
}

func (s *ServiceSuite) TestLoginByPassword() {
	created := s.signup("a@x.com")

	result, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "correct-horse",
	}, s.caller)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.Profile.ID, result.Profile.ID)
}

func (s *ServiceSuite) TestLoginWrongPasswordAndUnknownEmailIndistinguishable() {
	s.signup("a@x.com")

	_, wrongPassword := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "nope",
	}, s.caller)
	_, unknownEmail := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@x.com",
		Password: "correct-horse",
	}, s.caller)
	require.Error(s.T(), wrongPassword)
	require.Error(s.T(), unknownEmail)
	assert.Equal(s.T(), wrongPassword.Error(), unknownEmail.Error())
}

func (s *ServiceSuite) TestLoginLockoutAfterRepeatedFailures() {
	s.signup("a@x.com")

	bad := models.LoginRequest{Email: "a@x.com", Password: "nope"}
	for i := 0; i < 3; i++ {
		_, err := s.service.Login(context.Background(), bad, s.caller)
		require.Error(s.T(), err)
	}

	// Locked now, even with the correct password.
	_, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "correct-horse",
	}, s.caller)
	assert.ErrorIs(s.T(), err, lockout.ErrLocked)

	// A different caller is unaffected.
	other := Caller{IP: "203.0.113.9"}
	_, err = s.service.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "correct-horse",
	}, other)
	assert.NoError(s.T(), err)
}

func (s *ServiceSuite) TestLoginPinEarliestAccountWins() {
	first := s.signup("first@x.com")
	s.signup("second@x.com") // same PIN as first

	result, err := s.service.LoginPin(context.Background(), models.PinLoginRequest{PinCode: "4321"}, s.caller)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first.Profile.ID, result.Profile.ID)
}

func (s *ServiceSuite) TestLoginPinLockoutGate() {
	s.signup("a@x.com")

	for i := 0; i < 3; i++ {
		_, err := s.service.LoginPin(context.Background(), models.PinLoginRequest{PinCode: "0000"}, s.caller)
		require.Error(s.T(), err)
	}
	_, err := s.service.LoginPin(context.Background(), models.PinLoginRequest{PinCode: "4321"}, s.caller)
	assert.ErrorIs(s.T(), err, lockout.ErrLocked)
}

func (s *ServiceSuite) TestChangePinOldPinStopsWorking() {
	created := s.signup("a@x.com")

	err := s.service.ChangePin(context.Background(), created.Profile.ID, models.ChangePinRequest{
		OldPin: "4321",
		NewPin: "8888",
	}, s.caller)
	require.NoError(s.T(), err)

	ok, err := s.service.VerifyPin(context.Background(), created.Profile.ID, models.VerifyPinRequest{PinCode: "4321"})
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	ok, err = s.service.VerifyPin(context.Background(), created.Profile.ID, models.VerifyPinRequest{PinCode: "8888"})
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *ServiceSuite) TestChangePinRejectsWrongOldPin() {
	created := s.signup("a@x.com")

	err := s.service.ChangePin(context.Background(), created.Profile.ID, models.ChangePinRequest{
		OldPin: "0000",
		NewPin: "8888",
	}, s.caller)
	assert.ErrorIs(s.T(), err, verifier.ErrInvalidCredential)
}

func (s *ServiceSuite) TestResolvePayeeByUPI() {
	s.signup("a@x.com")

	payee, err := s.service.ResolvePayee(context.Background(), models.ResolvePayeeRequest{
		UPIHandle: "a@x.com@upi",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Asha Verma", payee.FullName)
	assert.Equal(s.T(), "AC-a@x.com", payee.AccountNumber)
}

func (s *ServiceSuite) TestResolvePayeeByPhone() {
	s.signup("a@x.com")
	s.signup("b@x.com")

	payee, err := s.service.ResolvePayee(context.Background(), models.ResolvePayeeRequest{
		PhoneNumber: "phone-b@x.com",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "AC-b@x.com", payee.AccountNumber)
}

func (s *ServiceSuite) TestResolvePayeeNotFound() {
	_, err := s.service.ResolvePayee(context.Background(), models.ResolvePayeeRequest{
		UPIHandle: "nobody@upi",
	})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransactionLifecycle() {
	created := s.signup("a@x.com")
	accountID := created.Profile.ID

	fund, err := s.service.AppendTransaction(context.Background(), accountID, models.AppendTransactionRequest{
		Kind:   "add-funds",
		Amount: 5000,
	})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 5000, fund.SignedAmount)

	transfer, err := s.service.AppendTransaction(context.Background(), accountID, models.AppendTransactionRequest{
		Kind:         "upi-transfer",
		Amount:       1200,
		Status:       "pending",
		Counterparty: models.Counterparty{Name: "Ravi", UPIHandle: "ravi@upi"},
	})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), -1200, transfer.SignedAmount)

	require.NoError(s.T(), s.service.Settle(context.Background(), accountID, transfer.ID, models.SettleRequest{Outcome: "completed"}))

	recent, err := s.service.ListTransactions(context.Background(), accountID, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 2)
	assert.Equal(s.T(), transfer.ID, recent[0].ID)
	assert.Equal(s.T(), models.StatusCompleted, recent[0].Status)

	profile, err := s.service.GetAccount(context.Background(), accountID)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 3800, profile.Balance)
}

func (s *ServiceSuite) TestAppendTransactionInsufficientFunds() {
	created := s.signup("a@x.com")

	_, err := s.service.AppendTransaction(context.Background(), created.Profile.ID, models.AppendTransactionRequest{
		Kind:   "card-payment",
		Amount: 1,
	})
	assert.ErrorIs(s.T(), err, ledger.ErrInsufficientFunds)
}

func (s *ServiceSuite) TestSettleAnotherAccountsTransactionForbidden() {
	ctx := context.Background()
	a := s.signup("a@x.com")
	b := s.signup("b@x.com")

	_, err := s.service.AppendTransaction(ctx, a.Profile.ID, models.AppendTransactionRequest{
		Kind:   "add-funds",
		Amount: 100,
	})
	require.NoError(s.T(), err)
	tx, err := s.service.AppendTransaction(ctx, a.Profile.ID, models.AppendTransactionRequest{
		Kind:   "upi-transfer",
		Amount: 50,
		Status: "pending",
	})
	require.NoError(s.T(), err)

	err = s.service.Settle(ctx, b.Profile.ID, tx.ID, models.SettleRequest{Outcome: "failed"})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeForbidden))

	// The transaction is untouched and its owner can still settle it.
	recent, err := s.service.ListTransactions(ctx, a.Profile.ID, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPending, recent[0].Status)
	assert.NoError(s.T(), s.service.Settle(ctx, a.Profile.ID, tx.ID, models.SettleRequest{Outcome: "completed"}))
}

func (s *ServiceSuite) TestSettleUnknownTransactionNotFound() {
	a := s.signup("a@x.com")

	err := s.service.Settle(context.Background(), a.Profile.ID, "no-such-transaction", models.SettleRequest{Outcome: "completed"})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLoginAuditCarriesDeviceFingerprint() {
	s.signup("a@x.com")

	_, err := s.service.Login(context.Background(), models.LoginRequest{
		Email:    "a@x.com",
		Password: "correct-horse",
	}, s.caller)
	require.NoError(s.T(), err)

	var login *audit.Event
drain:
	for {
		select {
		case ev := <-s.service.audit.Inbox():
			if ev.Action == "login" {
				login = &ev
				break drain
			}
		default:
			break drain
		}
	}
	require.NotNil(s.T(), login)
	assert.NotEmpty(s.T(), login.Device)
	assert.Equal(s.T(), device.NewService(true).ComputeFingerprint(s.caller.UserAgent), login.Fingerprint)
}

func (s *ServiceSuite) TestAccountLifecycleEndToEnd() {
	ctx := context.Background()

	created := s.signup("a@x.com")
	accountID := created.Profile.ID
	assert.EqualValues(s.T(), 0, created.Profile.Balance)

	// Same email again: rejected as a duplicate.
	_, err := s.service.Signup(ctx, signupRequest("a@x.com"), s.caller)
	require.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))

	// Fund, then overdraw.
	_, err = s.service.AppendTransaction(ctx, accountID, models.AppendTransactionRequest{
		Kind:   "add-funds",
		Amount: 500,
	})
	require.NoError(s.T(), err)

	_, err = s.service.AppendTransaction(ctx, accountID, models.AppendTransactionRequest{
		Kind:   "card-payment",
		Amount: 600,
	})
	require.ErrorIs(s.T(), err, ledger.ErrInsufficientFunds)

	profile, err := s.service.GetAccount(ctx, accountID)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 500, profile.Balance)

	// PIN login resolves this account; after a change the old PIN is dead.
	result, err := s.service.LoginPin(ctx, models.PinLoginRequest{PinCode: "4321"}, s.caller)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), accountID, result.Profile.ID)

	require.NoError(s.T(), s.service.ChangePin(ctx, accountID, models.ChangePinRequest{
		OldPin: "4321",
		NewPin: "9999",
	}, s.caller))

	_, err = s.service.LoginPin(ctx, models.PinLoginRequest{PinCode: "4321"}, s.caller)
	assert.ErrorIs(s.T(), err, verifier.ErrInvalidCredential)

	result, err = s.service.LoginPin(ctx, models.PinLoginRequest{PinCode: "9999"}, s.caller)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), accountID, result.Profile.ID)
}

func (s *ServiceSuite) TestGetAccountNotFound() {
	_, err := s.service.GetAccount(context.Background(), "no-such-id")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}
