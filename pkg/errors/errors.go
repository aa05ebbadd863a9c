package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrContention        = errors.New("concurrent modification")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidAdjustment = errors.New("invalid adjustment")
	ErrLedgerWrite       = errors.New("ledger write failure")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Stock engine error constructors

// InsufficientStock is returned when the eligible batches of a product
// cannot cover a requested quantity. No mutation occurs on this path.
func InsufficientStock(productID string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", productID, requested, available),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"product_id": productID,
			"requested":  fmt.Sprintf("%d", requested),
			"available":  fmt.Sprintf("%d", available),
		},
	}
}

// Contention is returned when a per-product lock could not be acquired or
// an optimistic version check failed. Transient; callers may retry.
func Contention(resource string) *AppError {
	return &AppError{
		Err:        ErrContention,
		Code:       "CONTENTION",
		Message:    fmt.Sprintf("concurrent modification of %s, retry", resource),
		StatusCode: http.StatusConflict,
	}
}

func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidAdjustment(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidAdjustment,
		Code:       "INVALID_ADJUSTMENT",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// LedgerWriteFailure is returned when a movement row could not be written
// mid-commit. Always fatal to the operation; the transaction is rolled back.
func LedgerWriteFailure(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrLedgerWrite, err),
		Code:       "LEDGER_WRITE_FAILURE",
		Message:    "failed to write movement ledger entry",
		StatusCode: http.StatusInternalServerError,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
