package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
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

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInsufficientFunds:
		return http.StatusBadRequest
	case ErrCodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsInvalidState(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInvalidState
}

var (
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrRoomNotFound        = New(ErrCodeNotFound, "комната не найдена")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrNotParticipant      = New(ErrCodeForbidden, "пользователь не участвует в споре")
	ErrInsufficientFunds   = New(ErrCodeInsufficientFunds, "недостаточно средств на балансе")
	ErrInvalidDisputeState = New(ErrCodeInvalidState, "операция недоступна в текущем статусе спора")
	ErrUserBanned          = New(ErrCodeForbidden, "пользователь заблокирован")
)
