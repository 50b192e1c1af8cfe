package insurai_test

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	insurai "github.com/goliatone/go-insurai"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{insurai.ErrMissingCredential, http.StatusForbidden},
		{insurai.ErrMalformedCredential, http.StatusForbidden},
		{insurai.ErrInsufficientRole, http.StatusForbidden},
		{insurai.ErrInvalidCredentials, http.StatusForbidden},
		{insurai.ErrNotFound, http.StatusNotFound},
		{insurai.ErrValidation, http.StatusBadRequest},
		{insurai.ErrInvalidTransition, http.StatusConflict},
		{insurai.ErrQueryAlreadyAnswered, http.StatusConflict},
		{insurai.ErrDuplicateAccount, http.StatusConflict},
		{insurai.ErrStorageUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{goerrors.New("no code", goerrors.CategoryAuth), http.StatusForbidden},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, insurai.HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestSentinelsAreMatchedByTextCode(t *testing.T) {
	wrapped := goerrors.Wrap(insurai.ErrNotFound, goerrors.CategoryInternal, "outer")
	assert.True(t, insurai.IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, insurai.HTTPStatus(wrapped))
	assert.True(t, insurai.IsNotFound(insurai.ErrNotFound))
	assert.True(t, insurai.IsInvalidTransition(insurai.ErrInvalidTransition))
	assert.True(t, insurai.IsAuthFailure(insurai.ErrInsufficientRole))
	assert.True(t, insurai.IsAuthFailure(insurai.ErrMissingCredential))
	assert.False(t, insurai.IsAuthFailure(insurai.ErrNotFound))
	assert.False(t, insurai.HasTextCode(errors.New("plain"), insurai.TextCodeNotFound))
}
