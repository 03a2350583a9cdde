package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidState      = "INVALID_STATE"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeUnavailable       = "REWARD_UNAVAILABLE"
	CodeExpired           = "CODE_EXPIRED"
	CodeMerchantMismatch  = "MERCHANT_MISMATCH"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewForbidden reports an actor whose role may not perform the action.
func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewStateError reports a lifecycle transition attempted from the wrong status.
func NewStateError(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidState, message, http.StatusConflict, details)
}

func NewInsufficientFunds(required, balance int64) error {
	return NewDomainError(CodeInsufficientFunds,
		fmt.Sprintf("insufficient civic coins: need %d, have %d", required, balance),
		http.StatusPaymentRequired,
		map[string]any{"required": required, "balance": balance})
}

func NewUnavailable(message string, details map[string]any) error {
	return NewDomainError(CodeUnavailable, message, http.StatusConflict, details)
}

// NewExpired covers both expired and already-used redemption codes.
func NewExpired(message string) error {
	return NewDomainError(CodeExpired, message, http.StatusGone, nil)
}

func NewMerchantMismatch(merchant string) error {
	return NewDomainError(CodeMerchantMismatch, "this code is not valid for this merchant",
		http.StatusUnprocessableEntity, map[string]any{"merchant": merchant})
}

func NewRateLimited(retryAfterSeconds float64) error {
	return NewDomainError(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests,
		map[string]any{"retry_after": retryAfterSeconds})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err to a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
