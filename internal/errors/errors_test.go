package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{SessionNotReady(), http.StatusServiceUnavailable},
		{InvalidJID("x"), http.StatusBadRequest},
		{UnknownCommand("nope"), http.StatusBadRequest},
		{InvalidMedia("empty"), http.StatusBadRequest},
		{TooManyRequests(), http.StatusTooManyRequests},
		{MessageSendFailed(fmt.Errorf("boom")), http.StatusInternalServerError},
		{New(ErrorCode("SOMETHING_ELSE"), "x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode)
		})
	}
}

func TestAppError_WrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := FetchFailed("chats", cause)

	assert.True(t, Is(err, cause))
	assert.Equal(t, "Failed to fetch chats", err.Message)
	assert.Contains(t, err.Error(), "FETCH_FAILED")
	assert.Contains(t, err.Error(), "socket closed")

	var appErr *AppError
	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, As(wrapped, &appErr))
	assert.Equal(t, ErrCodeFetchFailed, appErr.Code)
}
