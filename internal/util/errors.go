package util

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误类别，具体错误通过 %w 包装其中之一，由 HandleError 映射为状态码
var (
	ErrValidation     = errors.New("invalid request")
	ErrDuplicate      = errors.New("already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrNotImplemented = errors.New("not implemented")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailRegistered      = fmt.Errorf("email %w", ErrDuplicate)
	ErrUsernameTaken        = fmt.Errorf("username %w", ErrDuplicate)
	ErrInvalidCredentials   = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrPermissionDenied     = fmt.Errorf("%w: admin privileges required", ErrForbidden)
	ErrTestAlreadySubmitted = fmt.Errorf("%w: test already completed", ErrForbidden)
	ErrExamNotAvailable     = fmt.Errorf("%w: exam is not available", ErrForbidden)
	ErrAnswersRequired      = fmt.Errorf("%w: answers are required", ErrValidation)
	ErrExamHasResults       = fmt.Errorf("%w: exam has submitted results", ErrConflict)
	ErrCandidateHasResult   = fmt.Errorf("%w: candidate has a submitted result", ErrConflict)
	ErrResultExists         = fmt.Errorf("%w: result already recorded for candidate", ErrConflict)
	ErrCandidateEmailInUse  = fmt.Errorf("candidate with this email %w for this exam", ErrDuplicate)
)

// Validationf 构造 400 类错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf 构造 404 类错误，例如 NotFoundf("exam") => "exam not found"
func NotFoundf(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// StatusFor 返回错误类别对应的 HTTP 状态码，未知错误为 500
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicate):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
