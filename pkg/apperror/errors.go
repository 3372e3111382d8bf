package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Logic (LED) ----

// ErrConcurrentModification means a wallet's version moved between read and
// write. The caller must re-read and retry the whole operation; the core never
// retries internally.
func ErrConcurrentModification() *AppError {
	return New("LED_001", "Wallet was modified concurrently, retry the operation", http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New("LED_002", "Insufficient withdrawable balance", http.StatusPaymentRequired)
}

func ErrWalletNotActive() *AppError {
	return New("LED_003", "Wallet is frozen or closed and refuses this operation", http.StatusForbidden)
}

func ErrImmutableRecord(entity string) *AppError {
	return New("LED_004", fmt.Sprintf("%s is immutable and cannot be modified", entity), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_005", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("LED_006", "Invalid amount", http.StatusBadRequest)
}

// Validation returns a LED_006-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_006", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
