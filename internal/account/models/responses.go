package models

import "time"

// PublicProfile is the account view returned to its holder. It never carries
// the password hash, PIN hash, or card CVC.
type PublicProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	PhoneNumber   string    `json:"phoneNumber"`
	Address       string    `json:"address"`
	AccountNumber string    `json:"accountNumber"`
	CardNumber    string    `json:"cardNumber"`
	CardExpiry    string    `json:"cardExpiry"`
	CardType      CardType  `json:"cardType"`
	UPIHandle     string    `json:"upiHandle,omitempty"`
	KYCID         string    `json:"kycId,omitempty"`
	Balance       int64     `json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PublicProfileOf projects an account into its holder-visible view.
func PublicProfileOf(a *Account) PublicProfile {
	return PublicProfile{
		ID:            a.ID,
		Email:         a.Identifiers.Email,
		FullName:      a.Profile.FullName,
		PhoneNumber:   a.Profile.PhoneNumber,
		Address:       a.Profile.Address,
		AccountNumber: a.Identifiers.AccountNumber,
		CardNumber:    a.Identifiers.CardNumber,
		CardExpiry:    a.Profile.CardExpiry,
		CardType:      a.Profile.CardType,
		UPIHandle:     a.Identifiers.UPIHandle,
		KYCID:         a.Identifiers.KYCID,
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt,
	}
}

// Payee is the directory-lookup view of an account: non-sensitive fields
// only, no credentials and no card data.
type Payee struct {
	FullName      string `json:"fullName"`
	UPIHandle     string `json:"upiHandle,omitempty"`
	PhoneNumber   string `json:"phoneNumber"`
	AccountNumber string `json:"accountNumber"`
}

// PayeeOf projects an account into its directory view.
func PayeeOf(a *Account) Payee {
	return Payee{
		FullName:      a.Profile.FullName,
		UPIHandle:     a.Identifiers.UPIHandle,
		PhoneNumber:   a.Profile.PhoneNumber,
		AccountNumber: a.Identifiers.AccountNumber,
	}
}

// SessionResult pairs a minted token with the holder's profile.
type SessionResult struct {
	Token   string        `json:"token"`
	Profile PublicProfile `json:"user"`
}
