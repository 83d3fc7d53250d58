// Package session issues and validates stateless access tokens. There is no
// server-side session state and no revocation list: a token is valid until
// its expiry, and "logout" is purely a client-side discard.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "corebank/pkg/domain-errors"
)

// Claims are the signed token payload. AccountID is the only custom claim;
// everything else a handler needs is fetched fresh per request.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Issuer mints and validates HMAC-signed tokens.
type Issuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewIssuer constructs an Issuer. ttl is the token lifetime.
func NewIssuer(signingKey, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue signs a fresh token for the account.
func (s *Issuer) Issue(accountID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Validate checks the token signature and expiry and returns the account ID.
// Expired tokens are reported distinctly from malformed or forged ones so
// clients know to re-authenticate rather than treat it as a bug.
func (s *Issuer) Validate(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.AccountID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims.AccountID, nil
}
