package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/alicesotero/CoLab/internal/core/domain"
)

// ErrorCode identifies an application error class on the wire.
type ErrorCode string

const (
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeAuth           ErrorCode = "AUTH_ERROR"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"
	ErrCodeNotInRoom      ErrorCode = "NOT_IN_ROOM"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodePersistence    ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeAdapterTimeout ErrorCode = "ADAPTER_TIMEOUT"
	ErrCodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code, a user-facing message and the HTTP status
// used when the error surfaces on the REST boundary.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewAuthError(message string) *AppError {
	return NewAppError(ErrCodeAuth, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// FromDomain maps a coordinator sentinel error to its wire representation.
// Unrecognized errors become INTERNAL_ERROR.
func FromDomain(err error) *AppError {
	switch {
	case stderrors.Is(err, domain.ErrAccessDenied), stderrors.Is(err, domain.ErrUnknownRoom):
		return WrapError(err, ErrCodeAccessDenied, err.Error(), http.StatusForbidden)
	case stderrors.Is(err, domain.ErrNotInRoom):
		return WrapError(err, ErrCodeNotInRoom, err.Error(), http.StatusConflict)
	case stderrors.Is(err, domain.ErrForbidden):
		return WrapError(err, ErrCodeForbidden, err.Error(), http.StatusForbidden)
	case stderrors.Is(err, domain.ErrPersistence):
		return WrapError(err, ErrCodePersistence, err.Error(), http.StatusInternalServerError)
	case stderrors.Is(err, domain.ErrAdapterTimeout):
		return WrapError(err, ErrCodeAdapterTimeout, err.Error(), http.StatusGatewayTimeout)
	case stderrors.Is(err, domain.ErrBadCredentials), stderrors.Is(err, domain.ErrNotAuthenticated):
		return WrapError(err, ErrCodeAuth, err.Error(), http.StatusUnauthorized)
	case stderrors.Is(err, domain.ErrUserExists):
		return WrapError(err, ErrCodeConflict, err.Error(), http.StatusConflict)
	case stderrors.Is(err, domain.ErrUserNotFound):
		return WrapError(err, ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case stderrors.Is(err, domain.ErrEmptyMessage):
		return WrapError(err, ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	default:
		return WrapError(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
