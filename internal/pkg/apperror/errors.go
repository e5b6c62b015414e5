package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeTooLarge     ErrorCode = "PAYLOAD_TOO_LARGE"
)

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

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation, Forbidden и т.д. - короткие конструкторы для сервисного слоя.
func Validation(message string) *AppError   { return New(ErrCodeValidation, message) }
func Forbidden(message string) *AppError    { return New(ErrCodeForbidden, message) }
func NotFound(message string) *AppError     { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError     { return New(ErrCodeConflict, message) }
func InvalidState(message string) *AppError { return New(ErrCodeInvalidState, message) }
func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInvalidState:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// As извлекает AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool     { return hasCode(err, ErrCodeNotFound) }
func IsForbidden(err error) bool    { return hasCode(err, ErrCodeForbidden) }
func IsValidation(err error) bool   { return hasCode(err, ErrCodeValidation) }
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }
func IsConflict(err error) bool     { return hasCode(err, ErrCodeConflict) }

var (
	ErrIssueNotFound      = NotFound("Issue not found")
	ErrUserNotFound       = NotFound("User profile not found")
	ErrUnauthorized       = Unauthorized("No token provided")
	ErrInvalidToken       = Forbidden("Invalid or expired token")
	ErrAdminOnly          = Forbidden("Access denied: Admin only")
	ErrInvalidCredentials = Unauthorized("Invalid credentials")
	ErrUsernameTaken      = Conflict("Username already exists")
	ErrAdminNotFound      = NotFound("Admin not found")
	ErrIssueCodeTaken     = Conflict("Issue code already exists")
	ErrTooManyIssues      = New(ErrCodeRateLimited, "Daily issue limit reached, try again tomorrow")
	ErrCitizenOnly        = Forbidden("Access denied: Citizens only")
	ErrUploadTooLarge     = New(ErrCodeTooLarge, "Upload is too large")
)
