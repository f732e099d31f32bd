package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = New(Conflict, "order_conflict", "order already exists")

func TestWrapKeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := fmt.Errorf("insert: %w", errConflict.Wrap(cause))

	assert.ErrorIs(t, err, errConflict)
	assert.ErrorIs(t, err, cause)

	ae, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, cause, ae.Err)
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
	assert.Equal(t, "order_conflict", Code(err))
}

func TestWithfReplacesMessage(t *testing.T) {
	sentinel := New(Validation, "invalid_request", "invalid request")
	err := sentinel.Withf("missing field %s", "email")

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "missing field email", PublicMessage(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:              http.StatusBadRequest,
		Verification:            http.StatusBadRequest,
		NotFound:                http.StatusNotFound,
		Conflict:                http.StatusConflict,
		PreconditionFailed:      http.StatusConflict,
		GatewayTimeout:          http.StatusGatewayTimeout,
		Gateway:                 http.StatusInternalServerError,
		VerificationUnavailable: http.StatusInternalServerError,
		Internal:                http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(kind, "x", "y")), kind)
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
	assert.Equal(t, "internal_error", Code(errors.New("plain")))
	assert.Equal(t, "unexpected error", PublicMessage(errors.New("plain")))
}

func TestWrappedErrorMessage(t *testing.T) {
	var err error = errConflict.Wrap(errors.New("duplicate key"))
	assert.Equal(t, "order_conflict: order already exists: duplicate key", err.Error())

	err = errConflict.Withf("order %s already exists", "ord-1")
	assert.Equal(t, "order_conflict: order ord-1 already exists", err.Error())
}
