package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "corebank/pkg/domain-errors"
)

var issuer = NewIssuer("test-signing-key", "corebank-test", 7*24*time.Hour)

func Test_IssueAndValidate(t *testing.T) {
	accountID := uuid.NewString()

	token, err := issuer.Issue(accountID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func Test_Validate_InvalidToken(t *testing.T) {
	_, err := issuer.Validate("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Validate_ExpiredToken(t *testing.T) {
	expired := NewIssuer("test-signing-key", "corebank-test", -time.Hour)

	token, err := expired.Issue(uuid.NewString())
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_Validate_WrongKey(t *testing.T) {
	other := NewIssuer("a-different-key", "corebank-test", time.Hour)

	token, err := other.Issue(uuid.NewString())
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Validate_RejectsUnsignedAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		AccountID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Validate_SevenDayExpiry(t *testing.T) {
	token, err := issuer.Issue(uuid.NewString())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}
