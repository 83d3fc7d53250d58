// Package verifier owns credential hashing and comparison. It never stores
// or returns plaintext secrets; accounts hold bcrypt hashes only.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"corebank/internal/account/models"
	"corebank/internal/registry"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
)

// AccountSource is the read surface the verifier needs: a point lookup for
// namespace-qualified logins and a creation-ordered snapshot for the PIN
// population scan.
type AccountSource interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Snapshot(ctx context.Context) ([]*models.Account, error)
}

// ErrInvalidCredential covers every authentication failure. Deliberately not
// distinguished from "account not found" so responses never reveal whether an
// identifier is registered.
var ErrInvalidCredential = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")

// Verifier compares supplied secrets against stored one-way hashes.
type Verifier struct {
	accounts AccountSource
	registry *registry.Registry
	cost     int
}

// New constructs a Verifier. cost is the bcrypt work factor.
func New(accounts AccountSource, reg *registry.Registry, cost int) *Verifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Verifier{accounts: accounts, registry: reg, cost: cost}
}

// HashPassword produces a salted one-way hash of the password.
func (v *Verifier) HashPassword(plain string) (string, error) {
	return v.hash(plain)
}

// HashPin produces a salted one-way hash of the PIN. The format (exactly four
// decimal digits) is checked before any hashing work.
func (v *Verifier) HashPin(pin string) (string, error) {
	if !models.ValidPin(pin) {
		return "", dErrors.New(dErrors.CodeValidation, "pin must be 4 digits")
	}
	return v.hash(pin)
}

// VerifyPassword reports whether candidate matches the account's password.
func (v *Verifier) VerifyPassword(ctx context.Context, accountID, candidate string) (bool, error) {
	account, err := v.accounts.FindByID(ctx, accountID)
	if err != nil {
		return false, translateLookup(err)
	}
	return matches(account.Credentials.PasswordHash, candidate), nil
}

// VerifyPin reports whether candidate matches the account's PIN.
func (v *Verifier) VerifyPin(ctx context.Context, accountID, candidate string) (bool, error) {
	account, err := v.accounts.FindByID(ctx, accountID)
	if err != nil {
		return false, translateLookup(err)
	}
	return matches(account.Credentials.PinHash, candidate), nil
}

// LoginByPassword resolves the account through the email namespace and
// verifies the password. Unknown email and wrong password are the same error.
func (v *Verifier) LoginByPassword(ctx context.Context, email, candidate string) (string, error) {
	accountID, err := v.registry.Lookup(ctx, registry.NamespaceEmail, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", ErrInvalidCredential
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "email lookup failed")
	}
	ok, err := v.VerifyPassword(ctx, accountID, candidate)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredential
	}
	return accountID, nil
}

// LoginByPin authenticates by PIN alone. No identity is claimed, so the whole
// population is scanned in creation order and the first matching account
// wins; the scan stops at the first match. This is the system's one
// deliberately expensive operation — callers must gate it behind the lockout
// service, and it must never be "optimized" into an index, which would
// require storing PINs in a lookup-comparable form and weaken the one-way
// property. The scanned population size is returned for observability.
func (v *Verifier) LoginByPin(ctx context.Context, candidate string) (string, int, error) {
	if !models.ValidPin(candidate) {
		return "", 0, dErrors.New(dErrors.CodeValidation, "pin must be 4 digits")
	}

	population, err := v.accounts.Snapshot(ctx)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "account snapshot failed")
	}

	for scanned, account := range population {
		if err := ctx.Err(); err != nil {
			return "", scanned, dErrors.Wrap(err, dErrors.CodeTimeout, "pin scan abandoned")
		}
		if matches(account.Credentials.PinHash, candidate) {
			return account.ID, scanned + 1, nil
		}
	}
	return "", len(population), ErrInvalidCredential
}

// ChangePin replaces the account's PIN after the old one verifies. The new
// PIN's format is checked before any hashing or storage.
func (v *Verifier) ChangePin(ctx context.Context, accountID, oldPin, newPin string) (string, error) {
	if !models.ValidPin(newPin) {
		return "", dErrors.New(dErrors.CodeValidation, "new pin must be 4 digits")
	}
	ok, err := v.VerifyPin(ctx, accountID, oldPin)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredential
	}
	return v.hash(newPin)
}

func (v *Verifier) hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

func matches(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

func translateLookup(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
}
