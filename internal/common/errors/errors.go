package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/platform/lock"
	"github.com/open-builders/giveaway-raffle/internal/service/challenge"
)

// ErrorCode is the machine readable error kind returned to API clients.
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"

	ErrCodeGiveawayNotFound         ErrorCode = "GIVEAWAY_NOT_FOUND"
	ErrCodeInvalidState             ErrorCode = "INVALID_STATE"
	ErrCodeInsufficientParticipants ErrorCode = "INSUFFICIENT_PARTICIPANTS"
	ErrCodeNoParticipants           ErrorCode = "NO_PARTICIPANTS"
	ErrCodeInvalidTime              ErrorCode = "INVALID_TIME"
	ErrCodeAlreadyScheduled         ErrorCode = "ALREADY_SCHEDULED"
	ErrCodeNotScheduled             ErrorCode = "NOT_SCHEDULED"
	ErrCodeGiveawayFull             ErrorCode = "GIVEAWAY_FULL"
	ErrCodeAlreadyJoined            ErrorCode = "ALREADY_JOINED"
	ErrCodeNotSubscribed            ErrorCode = "NOT_SUBSCRIBED"
	ErrCodeChallengeRequired        ErrorCode = "CHALLENGE_REQUIRED"
	ErrCodeNoChallenge              ErrorCode = "NO_CHALLENGE"
	ErrCodeWinnerNotFound           ErrorCode = "WINNER_NOT_FOUND"

	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeLockTimeout   ErrorCode = "LOCK_TIMEOUT"
)

// AppError is a typed application error rendered at the HTTP boundary.
type AppError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Cause     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsInternal reports errors whose message must not leak to clients.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal || e.Code == ErrCodeDatabaseError
}

// WithDetail attaches a detail field to the error.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Timestamp: time.Now()}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

// AsAppError finds an AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil && stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var domainCodes = []struct {
	err  error
	code ErrorCode
}{
	{dg.ErrNotFound, ErrCodeGiveawayNotFound},
	{dg.ErrParticipantNotFound, ErrCodeNotFound},
	{dg.ErrWinnerNotFound, ErrCodeWinnerNotFound},
	{dg.ErrInsufficientParticipants, ErrCodeInsufficientParticipants},
	{dg.ErrNoParticipants, ErrCodeNoParticipants},
	{dg.ErrInvalidTime, ErrCodeInvalidTime},
	{dg.ErrAlreadyScheduled, ErrCodeAlreadyScheduled},
	{dg.ErrNotScheduled, ErrCodeNotScheduled},
	{dg.ErrInvalidState, ErrCodeInvalidState},
	{dg.ErrStatusConflict, ErrCodeConflict},
	{dg.ErrValidation, ErrCodeValidation},
	{dg.ErrForbidden, ErrCodeForbidden},
	{dg.ErrAlreadyParticipating, ErrCodeAlreadyJoined},
	{dg.ErrGiveawayFull, ErrCodeGiveawayFull},
	{dg.ErrNotSubscribed, ErrCodeNotSubscribed},
	{dg.ErrChallengeRequired, ErrCodeChallengeRequired},
	{challenge.ErrNoChallenge, ErrCodeNoChallenge},
	{challenge.ErrInvalidPosition, ErrCodeValidation},
	{challenge.ErrTooManyAttempts, ErrCodeTooManyRequests},
	{lock.ErrLockTimeout, ErrCodeLockTimeout},
	{dg.ErrPersistenceFailure, ErrCodeDatabaseError},
}

// FromDomain maps a service error onto an AppError. Unknown errors become
// internal errors.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	for _, dc := range domainCodes {
		if stderrors.Is(err, dc.err) {
			if dc.code == ErrCodeDatabaseError {
				return Wrap(err, dc.code, "Storage is temporarily unavailable")
			}
			return Wrap(err, dc.code, err.Error())
		}
	}
	return Wrap(err, ErrCodeInternal, "Internal server error")
}

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidTime, ErrCodeInsufficientParticipants, ErrCodeNoParticipants:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeNotSubscribed, ErrCodeChallengeRequired:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeGiveawayNotFound, ErrCodeWinnerNotFound, ErrCodeNoChallenge:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeInvalidState, ErrCodeAlreadyScheduled, ErrCodeNotScheduled,
		ErrCodeAlreadyJoined, ErrCodeGiveawayFull:
		return http.StatusConflict
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrCodeLockTimeout, ErrCodeDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
