package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
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

// Is matches DomainErrors by code so errors.Is works against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Error codes surfaced to clients.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimited           = "RATE_LIMITED"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeForbidden             = "FORBIDDEN"
)

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

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewRateLimited reports that the caller must back off for retryAfterSeconds.
func NewRateLimited(retryAfterSeconds int) error {
	return NewDomainError(CodeRateLimited,
		"Too many requests. Please try again later.",
		http.StatusTooManyRequests,
		map[string]any{"waitTimeInSeconds": retryAfterSeconds})
}

// NewStoreUnavailable reports that a backing store could not be reached.
func NewStoreUnavailable(err error) error {
	return storeUnavailable(err)
}

func storeUnavailable(err error) *DomainError {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return internalError(err)
}

func internalError(err error) *DomainError {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// AuthFailureKind selects one of the externally uniform authentication failures.
type AuthFailureKind int

const (
	InvalidCredentials AuthFailureKind = iota
	InvalidToken
	InvalidOrExpiredToken
)

var authFailures = map[AuthFailureKind]*DomainError{
	InvalidCredentials:    {Code: CodeInvalidCredentials, Message: "Invalid credentials", HTTPStatus: http.StatusUnauthorized},
	InvalidToken:          {Code: CodeInvalidToken, Message: "Authentication failed", HTTPStatus: http.StatusUnauthorized},
	InvalidOrExpiredToken: {Code: CodeInvalidOrExpiredToken, Message: "Invalid or expired reset token", HTTPStatus: http.StatusBadRequest},
}

// AuthFailure returns the single client-visible error for an authentication failure.
// Callers never attach causes so no code path can leak why authentication failed.
func AuthFailure(kind AuthFailureKind) error {
	tmpl, ok := authFailures[kind]
	if !ok {
		tmpl = authFailures[InvalidCredentials]
	}
	out := *tmpl
	return &out
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCredentials    = AuthFailure(InvalidCredentials)
	ErrInvalidToken          = AuthFailure(InvalidToken)
	ErrInvalidOrExpiredToken = AuthFailure(InvalidOrExpiredToken)
	ErrStoreUnavailable      = &DomainError{Code: CodeStoreUnavailable}
	ErrRateLimited           = &DomainError{Code: CodeRateLimited}
	ErrValidation            = &DomainError{Code: CodeValidation}
	ErrInternal              = &DomainError{Code: CodeInternal}
)

// IsTimeout reports whether err stems from a deadline or cancellation.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Boundary is applied where service results leave the core. Domain errors pass through,
// anything else is logged with its full context and replaced by a generic InternalError.
func Boundary(logger *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus >= http.StatusInternalServerError && logger != nil {
			logger.Error("operation failed", zap.String("op", op), zap.String("code", domainErr.Code), zap.Error(err))
		}
		return domainErr
	}
	if logger != nil {
		logger.Error("unexpected failure", zap.String("op", op), zap.Error(err))
	}
	return NewInternalError(err)
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
	if IsTimeout(err) {
		return storeUnavailable(err)
	}
	return internalError(err)
}
