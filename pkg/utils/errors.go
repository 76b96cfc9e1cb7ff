package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ResponseCode business response code
type ResponseCode int

const (
	CodeSuccess         ResponseCode = 0
	CodeInvalidParam    ResponseCode = 1001
	CodeNotFound        ResponseCode = 1002
	CodeDuplicateItem   ResponseCode = 1003
	CodeInternalError   ResponseCode = 1004
	CodeUnauthorized    ResponseCode = 1005
	CodeForbidden       ResponseCode = 1006
	CodeRateLimit       ResponseCode = 1007
	CodeExternalService ResponseCode = 2001
	CodePersistence     ResponseCode = 2002
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so wrapped copies compare equal to the sentinels
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	ErrValidation      = NewError(CodeInvalidParam, "validation failed")
	ErrNotFound        = NewError(CodeNotFound, "not found")
	ErrDuplicateItem   = NewError(CodeDuplicateItem, "duplicate item")
	ErrUnauthorized    = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden       = NewError(CodeForbidden, "forbidden")
	ErrRateLimit       = NewError(CodeRateLimit, "rate limit exceeded")
	ErrExternalService = NewError(CodeExternalService, "external service failure")
	ErrPersistence     = NewError(CodePersistence, "persistence failure")
	ErrInternalError   = NewError(CodeInternalError, "internal server error")
)

// Validation builds a validation error with a user facing message
func Validation(message string) *AppError {
	return NewError(CodeInvalidParam, message)
}

// NotFound builds a not-found error with a user facing message
func NotFound(message string) *AppError {
	return NewError(CodeNotFound, message)
}

// Duplicate builds a duplicate-item error with a user facing message
func Duplicate(message string) *AppError {
	return NewError(CodeDuplicateItem, message)
}

// Forbidden builds a forbidden error with a user facing message
func Forbidden(message string) *AppError {
	return NewError(CodeForbidden, message)
}

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps an error onto the HTTP status handlers should answer with
func HTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateItem:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
