package query

import (
	"fmt"
	"net/http"

	"github.com/matzehuels/fetchq/pkg/errors"
)

// AbortMessage is the message and reason of the error a cycle settles with
// after [Coordinator.Abort].
const AbortMessage = "Aborted by the user"

// AbortStatusCode is the status code of the abort error.
const AbortStatusCode = -1

// Reasons used when the failure carries no payload of its own.
const (
	reasonNetwork = "network error"
	reasonDecode  = "invalid response body"
)

// Error is the failure a cycle settles with. Its JSON form mirrors the error
// payloads servers send: {"message", "statusCode", "error"}.
type Error struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Reason     string      `json:"error"`
	Code       errors.Code `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// Unwrap returns the underlying failure, if any.
func (e *Error) Unwrap() error { return e.cause }

// Aborted reports whether the cycle was cancelled by [Coordinator.Abort].
func (e *Error) Aborted() bool { return e.Code == errors.ErrCodeAborted }

func abortError() *Error {
	return &Error{
		Message:    AbortMessage,
		StatusCode: AbortStatusCode,
		Reason:     AbortMessage,
		Code:       errors.ErrCodeAborted,
	}
}

func networkError(err error) *Error {
	return &Error{
		Message: err.Error(),
		Reason:  reasonNetwork,
		Code:    errors.ErrCodeNetwork,
		cause:   err,
	}
}

// statusError describes a non-2xx response. A body with an error marker
// supplies the message and reason.
func statusError(code int, body []byte) *Error {
	if e := markerError(body, code); e != nil {
		e.Code = errors.ErrCodeHTTPStatus
		return e
	}
	text := http.StatusText(code)
	if text == "" {
		text = fmt.Sprintf("status %d", code)
	}
	return &Error{
		Message:    fmt.Sprintf("request failed with status %d", code),
		StatusCode: code,
		Reason:     text,
		Code:       errors.ErrCodeHTTPStatus,
	}
}

func decodeError(code int, err error) *Error {
	return &Error{
		Message:    fmt.Sprintf("decode response: %v", err),
		StatusCode: code,
		Reason:     reasonDecode,
		Code:       errors.ErrCodeDecode,
		cause:      err,
	}
}
