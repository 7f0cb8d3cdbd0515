package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeAlreadyConsented, "pair already has a record")
		assert.True(t, HasCode(err, CodeAlreadyConsented))
		assert.False(t, HasCode(err, CodeNotConsented))
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("pk violation")
		err := Wrap(inner, CodeAlreadyConsented, "pair already has a record")
		assert.True(t, HasCode(err, CodeAlreadyConsented))
		assert.True(t, errors.Is(err, inner))
	})

	t.Run("fmt wrapped", func(t *testing.T) {
		err := fmt.Errorf("grant consent: %w", New(CodeStudyInactive, "study closed"))
		assert.True(t, HasCode(err, CodeStudyInactive))
	})

	t.Run("plain error carries no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:             http.StatusBadRequest,
		CodeUnauthorized:             http.StatusUnauthorized,
		CodeNotFound:                 http.StatusNotFound,
		CodeAlreadyExists:            http.StatusConflict,
		CodeAlreadyConsented:         http.StatusConflict,
		CodeAlreadyClaimed:           http.StatusConflict,
		CodeNotConsented:             http.StatusPreconditionFailed,
		CodeConsentRequired:          http.StatusPreconditionFailed,
		CodeStudyInactive:            http.StatusPreconditionFailed,
		CodeInsufficientVaultBalance: http.StatusInternalServerError,
		CodeInternal:                 http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
