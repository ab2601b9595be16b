package common

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// ErrNotFound is returned by stores when a row does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError is a 400 carrying per-field messages.
func ValidationError(details map[string]string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: "invalid request", HTTPStatus: http.StatusBadRequest, Details: details}
}

// NotFound builds the canonical 404.
func NotFound(resource string) *AppError {
	return NewAppError("NOT_FOUND", resource+" not found", http.StatusNotFound, ErrNotFound)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteError renders err using the canonical error body. Anything that is not
// an AppError, and any AppError with a 5xx status, is reported to Sentry when a
// hub is bound to the request.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		report(r, err)
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := appErr.Code
	if code == "" {
		code = "INTERNAL"
	}
	message := appErr.Message
	if message == "" {
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		report(r, err)
	}
	JSONError(w, status, code, message, appErr.Details)
}

func report(r *http.Request, err error) {
	if r == nil || err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
}
