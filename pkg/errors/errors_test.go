package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrNotFound, "campaign not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "campaign not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, ErrInternal.Code, appErr.Code)

	wrapped := fmt.Errorf("context: %w", ErrBusy)
	assert.Equal(t, ErrBusy, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}

type upstreamFailure struct{ status int }

func (u upstreamFailure) Error() string { return "upstream failure" }

func (u upstreamFailure) AppError() *Error {
	if u.status == http.StatusNotFound {
		return Wrap(u, ErrNotFound.Code, ErrNotFound.Status, "lead not found")
	}
	return Wrap(u, ErrUpstream.Code, ErrUpstream.Status, ErrUpstream.Message)
}

func TestFromErrorUsesMapper(t *testing.T) {
	appErr := FromError(fmt.Errorf("load lead: %w", upstreamFailure{status: http.StatusNotFound}))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "lead not found", appErr.Message)
	assert.ErrorIs(t, appErr, ErrNotFound)

	assert.Equal(t, ErrUpstream.Code, FromError(upstreamFailure{status: 500}).Code)
}
