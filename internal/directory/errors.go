package directory

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrMalformedResponse = errors.New("malformed response body")
)

// Error describes a failed directory call.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
	Details    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" [%d]", e.StatusCode)
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, url string, err error) *Error {
	return &Error{Op: op, URL: url, Err: err}
}

func statusError(op, url string, code int, body []byte) *Error {
	return &Error{
		Op:         op,
		URL:        url,
		StatusCode: code,
		Err:        ErrUnexpectedStatus,
		Details:    snippet(body),
	}
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
