package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	root := errors.New("connection refused")
	wrapped := Wrap(root, CodeInternal, "failed to persist account")

	assert.ErrorIs(t, wrapped, root)
	assert.Contains(t, wrapped.Error(), "failed to persist account")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestHasCode(t *testing.T) {
	inner := New(CodeConflict, "identifier already registered")
	outer := Wrap(inner, CodeInternal, "signup failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeConflict))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	inner := New(CodeUnauthorized, "invalid credentials")
	outer := fmt.Errorf("login: %w", inner)

	require.True(t, HasCode(outer, CodeUnauthorized))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "no such account")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeInvariantViolation: http.StatusUnprocessableEntity,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
