package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New("LED_001", "Wallet was modified concurrently", http.StatusConflict)
	assert.Equal(t, "[LED_001] Wallet was modified concurrently", err.Error())
}

func TestAppError_ErrorWithWrapped(t *testing.T) {
	inner := errors.New("connection reset")
	err := Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, inner)
	assert.Contains(t, err.Error(), "SYS_001")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := InternalError(fmt.Errorf("query failed: %w", inner))
	assert.True(t, errors.Is(err, inner))
}

func TestAppError_ErrorAs(t *testing.T) {
	var appErr *AppError
	wrapped := fmt.Errorf("operation failed: %w", ErrInsufficientFunds())
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "LED_002", appErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, appErr.HTTPStatus)
}

func TestErrorCatalog(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrConcurrentModification(), "LED_001", http.StatusConflict},
		{ErrInsufficientFunds(), "LED_002", http.StatusPaymentRequired},
		{ErrWalletNotActive(), "LED_003", http.StatusForbidden},
		{ErrImmutableRecord("audit record"), "LED_004", http.StatusConflict},
		{ErrNotFound("wallet"), "LED_005", http.StatusNotFound},
		{ErrInvalidAmount(), "LED_006", http.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, tt.status, tt.err.HTTPStatus)
	}
}

func TestErrNotFound_Message(t *testing.T) {
	assert.Equal(t, "[LED_005] payout entry not found", ErrNotFound("payout entry").Error())
}
