package models

import (
	"regexp"
	"strings"

	dErrors "corebank/pkg/domain-errors"
)

var (
	pinPattern = regexp.MustCompile(`^\d{4}$`)
	kycPattern = regexp.MustCompile(`^\d{14}$`)
)

// ValidPin reports whether s is exactly four decimal digits.
func ValidPin(s string) bool {
	return pinPattern.MatchString(s)
}

// SignupRequest carries everything needed to open an account.
type SignupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	PinCode       string `json:"pinCode"`
	FullName      string `json:"fullName"`
	PhoneNumber   string `json:"phoneNumber"`
	Address       string `json:"address"`
	AccountNumber string `json:"accountNumber"`
	CardNumber    string `json:"cardNumber"`
	CardCVC       string `json:"cardCVC"`
	CardExpiry    string `json:"cardExpiry"`
	CardType      string `json:"cardType"`
	UPIHandle     string `json:"upiHandle"`
	KYCID         string `json:"kycId"`
}

// Normalize trims whitespace and lowercases the case-insensitive fields.
func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Password = strings.TrimSpace(r.Password)
	r.PinCode = strings.TrimSpace(r.PinCode)
	r.FullName = strings.TrimSpace(r.FullName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Address = strings.TrimSpace(r.Address)
	r.AccountNumber = strings.TrimSpace(r.AccountNumber)
	r.CardNumber = strings.TrimSpace(r.CardNumber)
	r.CardCVC = strings.TrimSpace(r.CardCVC)
	r.CardExpiry = strings.TrimSpace(r.CardExpiry)
	r.CardType = strings.ToLower(strings.TrimSpace(r.CardType))
	r.UPIHandle = strings.TrimSpace(r.UPIHandle)
	r.KYCID = strings.TrimSpace(r.KYCID)
}

// Validate checks field formats before any state is touched. The first
// violated constraint is returned; nothing is reserved or hashed on failure.
func (r *SignupRequest) Validate() error {
	required := []struct{ field, value string }{
		{"email", r.Email},
		{"password", r.Password},
		{"fullName", r.FullName},
		{"phoneNumber", r.PhoneNumber},
		{"accountNumber", r.AccountNumber},
		{"cardNumber", r.CardNumber},
		{"cardCVC", r.CardCVC},
		{"cardExpiry", r.CardExpiry},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.field+" is required")
		}
	}
	if !ValidPin(r.PinCode) {
		return dErrors.New(dErrors.CodeValidation, "pinCode must be 4 digits")
	}
	if !CardType(r.CardType).Valid() {
		return dErrors.New(dErrors.CodeValidation, "cardType must be visa or mastercard")
	}
	if r.KYCID != "" && !kycPattern.MatchString(r.KYCID) {
		return dErrors.New(dErrors.CodeValidation, "kycId must be 14 digits")
	}
	return nil
}

// Identifiers extracts the namespace values from the request.
func (r *SignupRequest) Identifiers() Identifiers {
	return Identifiers{
		Email:         r.Email,
		AccountNumber: r.AccountNumber,
		CardNumber:    r.CardNumber,
		UPIHandle:     r.UPIHandle,
		KYCID:         r.KYCID,
	}
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

// PinLoginRequest authenticates by PIN alone; no identity is claimed.
type PinLoginRequest struct {
	PinCode string `json:"pinCode"`
}

func (r *PinLoginRequest) Validate() error {
	if !ValidPin(r.PinCode) {
		return dErrors.New(dErrors.CodeValidation, "pinCode must be 4 digits")
	}
	return nil
}

// ChangePinRequest replaces the PIN after the old one verifies.
type ChangePinRequest struct {
	OldPin string `json:"oldPin"`
	NewPin string `json:"newPin"`
}

func (r *ChangePinRequest) Validate() error {
	if r.OldPin == "" {
		return dErrors.New(dErrors.CodeValidation, "oldPin is required")
	}
	if !ValidPin(r.NewPin) {
		return dErrors.New(dErrors.CodeValidation, "newPin must be 4 digits")
	}
	return nil
}

// VerifyPinRequest re-checks the caller's PIN.
type VerifyPinRequest struct {
	PinCode string `json:"pinCode"`
}

func (r *VerifyPinRequest) Validate() error {
	if !ValidPin(r.PinCode) {
		return dErrors.New(dErrors.CodeValidation, "pinCode must be 4 digits")
	}
	return nil
}

// ResolvePayeeRequest looks a payee up by UPI handle or phone number.
type ResolvePayeeRequest struct {
	UPIHandle   string `json:"upiHandle"`
	PhoneNumber string `json:"phoneNumber"`
}

func (r *ResolvePayeeRequest) Normalize() {
	r.UPIHandle = strings.TrimSpace(r.UPIHandle)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
}

func (r *ResolvePayeeRequest) Validate() error {
	if r.UPIHandle == "" && r.PhoneNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "upiHandle or phoneNumber is required")
	}
	return nil
}

// AppendTransactionRequest records a movement on the caller's ledger.
type AppendTransactionRequest struct {
	Kind         string       `json:"kind"`
	Amount       int64        `json:"amount"`
	Counterparty Counterparty `json:"counterparty"`
	Status       string       `json:"status"`
	CardLastFour string       `json:"cardLastFour"`
	Notes        string       `json:"notes"`
}

func (r *AppendTransactionRequest) Validate() error {
	if !TransactionKind(r.Kind).Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown transaction kind")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if r.Status != "" && !TransactionStatus(r.Status).Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown transaction status")
	}
	return nil
}

// Draft converts the request into a ledger draft.
func (r *AppendTransactionRequest) Draft() TransactionDraft {
	return TransactionDraft{
		Kind:         TransactionKind(r.Kind),
		Amount:       r.Amount,
		Counterparty: r.Counterparty,
		Status:       TransactionStatus(r.Status),
		CardLastFour: r.CardLastFour,
		Notes:        r.Notes,
	}
}

// SettleRequest finalizes a pending transaction.
type SettleRequest struct {
	Outcome string `json:"outcome"`
}

func (r *SettleRequest) Validate() error {
	outcome := TransactionStatus(r.Outcome)
	if !outcome.Terminal() {
		return dErrors.New(dErrors.CodeValidation, "outcome must be completed or failed")
	}
	return nil
}
