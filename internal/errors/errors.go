package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"repodeck/internal/git"
)

type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeBackend    ErrorType = "BACKEND"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

// Backend reports a failed version-control operation. details usually
// carries the tool's stderr.
func Backend(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeBackend,
		Message: message,
		Code:    http.StatusUnprocessableEntity,
		Details: details,
	}
}

func Internal(message string) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// phased is implemented by errors that name the workflow phase that failed.
type phased interface {
	error
	FailedPhase() string
}

// From maps err onto an *Error for the HTTP boundary.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var details any
	var cmdErr *git.CommandError
	if stderrors.As(err, &cmdErr) {
		details = cmdErr.Stderr
	}

	// a failed phase is a backend failure whatever stopped it
	var p phased
	if stderrors.As(err, &p) {
		return Backend(p.Error(), details)
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	if cmdErr != nil {
		return Backend(err.Error(), details)
	}
	return Internal(err.Error())
}

// Is reports whether err carries an *Error of type t
func Is(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// Write sends err as a JSON error body with its status code
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(e)
}
