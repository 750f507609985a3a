package query

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/matzehuels/fetchq/pkg/errors"
)

// errorPayload is the shape servers use to signal an application error in an
// otherwise successful response.
type errorPayload struct {
	Error      json.RawMessage `json:"error"`
	Message    json.RawMessage `json:"message"`
	StatusCode json.RawMessage `json:"statusCode"`
}

// decode parses body into T, failing on an application error marker.
func decode[T any](body []byte, status int) (T, *Error) {
	var v T
	if e := markerError(body, status); e != nil {
		return v, e
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, decodeError(status, err)
	}
	return v, nil
}

// markerError returns an application error when body is a JSON object whose
// "error" member is truthy. Missing fields fall back to fallbackStatus.
func markerError(body []byte, fallbackStatus int) *Error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var p errorPayload
	if err := json.Unmarshal(trimmed, &p); err != nil || !truthy(p.Error) {
		return nil
	}

	reason, isString := rawString(p.Error)
	message, _ := rawString(p.Message)
	if !isString {
		reason = message
		if reason == "" {
			reason = string(p.Error)
		}
	}
	if message == "" {
		message = reason
	}

	status := fallbackStatus
	if n, ok := rawInt(p.StatusCode); ok {
		status = n
	}

	return &Error{
		Message:    message,
		StatusCode: status,
		Reason:     reason,
		Code:       errors.ErrCodeApplication,
	}
}

// truthy mirrors JSON truthiness: null, false, "" and 0 are false.
func truthy(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	switch s {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return true
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

func rawInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	if s, ok := rawString(raw); ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}
