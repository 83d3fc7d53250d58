// Package service orchestrates signup, authentication, and ledger operations
// across the registry, verifier, ledger, and session issuer. Handlers stay
// thin; every business rule lives here or below.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"corebank/internal/account/models"
	"corebank/internal/account/store"
	"corebank/internal/audit"
	"corebank/internal/device"
	"corebank/internal/ledger"
	"corebank/internal/lockout"
	"corebank/internal/platform/metrics"
	"corebank/internal/registry"
	"corebank/internal/session"
	"corebank/internal/verifier"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
)

// Caller identifies the request origin for lockout keys and audit events.
type Caller struct {
	IP        string
	UserAgent string
}

type Service struct {
	store    store.AccountStore
	registry *registry.Registry
	verifier *verifier.Verifier
	ledger   *ledger.Ledger
	sessions *session.Issuer
	lockout  *lockout.Service
	audit    *audit.Publisher
	devices  *device.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Deps struct {
	Store    store.AccountStore
	Registry *registry.Registry
	Verifier *verifier.Verifier
	Ledger   *ledger.Ledger
	Sessions *session.Issuer
	Lockout  *lockout.Service
	Audit    *audit.Publisher
	Devices  *device.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func New(deps Deps) *Service {
	devices := deps.Devices
	if devices == nil {
		devices = device.NewService(false)
	}
	return &Service{
		store:    deps.Store,
		registry: deps.Registry,
		verifier: deps.Verifier,
		ledger:   deps.Ledger,
		sessions: deps.Sessions,
		lockout:  deps.Lockout,
		audit:    deps.Audit,
		devices:  devices,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		tracer:   otel.Tracer("corebank/internal/account/service"),
	}
}

// Signup opens an account: validate, reserve every present identifier
// atomically, hash credentials, persist, and mint a session. Any failure
// after reservation releases the reserved identifiers so a retry with the
// same values can succeed; a failure after persistence also deletes the
// account record.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest, caller Caller) (*models.SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "account.Signup")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	accountID := uuid.NewString()
	ids := req.Identifiers()

	if err := s.registry.Register(ctx, ids, accountID); err != nil {
		var dup *registry.DuplicateError
		if errors.As(err, &dup) {
			return nil, dErrors.New(dErrors.CodeConflict, dup.Error())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identifier reservation failed")
	}

	result, err := s.finishSignup(ctx, req, accountID, caller)
	if err != nil {
		s.registry.Release(ctx, ids)
		return nil, err
	}
	return result, nil
}

func (s *Service) finishSignup(ctx context.Context, req models.SignupRequest, accountID string, caller Caller) (*models.SessionResult, error) {
	passwordHash, err := s.verifier.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	pinHash, err := s.verifier.HashPin(req.PinCode)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:          accountID,
		Identifiers: req.Identifiers(),
		Credentials: models.Credentials{PasswordHash: passwordHash, PinHash: pinHash},
		Profile: models.Profile{
			FullName:    req.FullName,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
			CardType:    models.CardType(req.CardType),
			CardExpiry:  req.CardExpiry,
			CardCVC:     req.CardCVC,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account persistence failed")
	}

	token, err := s.sessions.Issue(accountID)
	if err != nil {
		if delErr := s.store.Delete(ctx, accountID); delErr != nil {
			s.logger.Error("signup rollback delete failed", "account_id", accountID, "error", delErr)
		}
		return nil, err
	}

	s.metrics.AccountsCreated.Inc()
	s.audit.Emit(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		AccountID: accountID,
		Action:    "account_created",
		Outcome:   "success",
		CallerIP:  caller.IP,
		Device:    device.ParseUserAgent(caller.UserAgent),
	})
	return &models.SessionResult{Token: token, Profile: models.PublicProfileOf(account)}, nil
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, req models.LoginRequest, caller Caller) (*models.SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "account.Login")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := "password:" + caller.IP
	if err := s.gate(ctx, key, "password", caller); err != nil {
		return nil, err
	}

	accountID, err := s.verifier.LoginByPassword(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.authFailed(ctx, key, "password", caller, err)
	}
	return s.authSucceeded(ctx, key, "password", accountID, caller)
}

// LoginPin authenticates by PIN alone. The lockout gate is mandatory here:
// the PIN space is 10,000 values and the scan accepts any account's match.
func (s *Service) LoginPin(ctx context.Context, req models.PinLoginRequest, caller Caller) (*models.SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "account.LoginPin")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := "pin:" + caller.IP
	if err := s.gate(ctx, key, "pin", caller); err != nil {
		return nil, err
	}

	accountID, scanned, err := s.verifier.LoginByPin(ctx, req.PinCode)
	s.metrics.PinScanPopulation.Observe(float64(scanned))
	span.SetAttributes(attribute.Int("scan.population", scanned))
	if err != nil {
		return nil, s.authFailed(ctx, key, "pin", caller, err)
	}
	return s.authSucceeded(ctx, key, "pin", accountID, caller)
}

func (s *Service) gate(ctx context.Context, key, method string, caller Caller) error {
	check, err := s.lockout.Check(ctx, key)
	if err != nil {
		return err
	}
	if !check.Allowed {
		s.audit.Emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   "login_blocked",
			Outcome:  "locked",
			Reason:   method,
			CallerIP: caller.IP,
		})
		return lockout.ErrLocked
	}
	return nil
}

func (s *Service) authFailed(ctx context.Context, key, method string, caller Caller, cause error) error {
	if !errors.Is(cause, verifier.ErrInvalidCredential) {
		return cause
	}
	s.metrics.AuthFailures.WithLabelValues(method).Inc()
	locked, err := s.lockout.RecordFailure(ctx, key)
	if err != nil {
		s.logger.Error("failed to record auth failure", "error", err)
	}
	if locked {
		s.metrics.Lockouts.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Action:   "login_failed",
		Outcome:  "denied",
		Reason:   method,
		CallerIP: caller.IP,
	})
	return cause
}

func (s *Service) authSucceeded(ctx context.Context, key, method, accountID string, caller Caller) (*models.SessionResult, error) {
	if err := s.lockout.Clear(ctx, key); err != nil {
		s.logger.Error("failed to clear lockout history", "error", err)
	}

	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
	}
	token, err := s.sessions.Issue(accountID)
	if err != nil {
		return nil, err
	}

	s.metrics.Logins.WithLabelValues(method).Inc()
	s.audit.Emit(ctx, audit.Event{
		Category:    audit.CategorySecurity,
		AccountID:   accountID,
		Action:      "login",
		Outcome:     "success",
		Reason:      method,
		CallerIP:    caller.IP,
		Device:      device.ParseUserAgent(caller.UserAgent),
		Fingerprint: s.devices.ComputeFingerprint(caller.UserAgent),
	})
	return &models.SessionResult{Token: token, Profile: models.PublicProfileOf(account)}, nil
}

// ChangePin replaces the caller's PIN after the old one verifies.
func (s *Service) ChangePin(ctx context.Context, accountID string, req models.ChangePinRequest, caller Caller) error {
	if err := req.Validate(); err != nil {
		return err
	}
	newHash, err := s.verifier.ChangePin(ctx, accountID, req.OldPin, req.NewPin)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePinHash(ctx, accountID, newHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "pin update failed")
	}
	s.audit.Emit(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		AccountID: accountID,
		Action:    "pin_changed",
		Outcome:   "success",
		CallerIP:  caller.IP,
	})
	return nil
}

// VerifyPin re-checks the caller's PIN, e.g. before a sensitive operation.
func (s *Service) VerifyPin(ctx context.Context, accountID string, req models.VerifyPinRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}
	return s.verifier.VerifyPin(ctx, accountID, req.PinCode)
}

// GetAccount returns the holder-visible view of an account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*models.PublicProfile, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
	}
	profile := models.PublicProfileOf(account)
	return &profile, nil
}

// ResolvePayee finds the redacted directory view of another account by UPI
// handle or phone number. UPI resolves through the registry; phone numbers
// are not registry namespaces, so they fall back to a snapshot scan.
func (s *Service) ResolvePayee(ctx context.Context, req models.ResolvePayeeRequest) (*models.Payee, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.UPIHandle != "" {
		accountID, err := s.registry.Lookup(ctx, registry.NamespaceUPIHandle, req.UPIHandle)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "payee not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payee lookup failed")
		}
		account, err := s.store.FindByID(ctx, accountID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payee lookup failed")
		}
		payee := models.PayeeOf(account)
		return &payee, nil
	}

	population, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payee lookup failed")
	}
	for _, account := range population {
		if account.Profile.PhoneNumber == req.PhoneNumber {
			payee := models.PayeeOf(account)
			return &payee, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "payee not found")
}

// AppendTransaction records a movement on the caller's own ledger.
func (s *Service) AppendTransaction(ctx context.Context, accountID string, req models.AppendTransactionRequest) (*models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "account.AppendTransaction",
		trace.WithAttributes(attribute.String("transaction.kind", req.Kind)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.ledger.Append(ctx, accountID, req.Draft())
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		AccountID: accountID,
		Action:    "transaction_appended",
		Outcome:   string(tx.Status),
		Reason:    string(tx.Kind),
	})
	return tx, nil
}

// ListTransactions returns the caller's history, most recent first.
func (s *Service) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	return s.ledger.ListRecent(ctx, accountID, limit)
}

// Settle finalizes a pending transaction on the caller's own ledger. The
// transaction's owning account must match accountID; settlement of another
// holder's transaction is forbidden.
func (s *Service) Settle(ctx context.Context, accountID, transactionID string, req models.SettleRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	owner, err := s.store.TransactionOwner(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "transaction not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction lookup failed")
	}
	if owner != accountID {
		return dErrors.New(dErrors.CodeForbidden, "cannot settle another account's transaction")
	}
	if err := s.ledger.Settle(ctx, transactionID, models.TransactionStatus(req.Outcome)); err != nil {
		return err
	}
	s.audit.Emit(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		AccountID: accountID,
		Action:    "transaction_settled",
		Outcome:   req.Outcome,
		Reason:    transactionID,
	})
	return nil
}
