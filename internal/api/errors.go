package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized matches any StatusError carrying HTTP 401
var ErrUnauthorized = errors.New("unauthorized")

// TransportError means the request could not complete
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError means the server answered with a non-success status
type StatusError struct {
	Op     string
	Status int
	// Detail is the "detail" string of the JSON error body, if any
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
}

// Is reports 401 responses as ErrUnauthorized
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// DecodeError means a success response whose body was unparseable or incomplete
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind names the error category for logs and metrics
func Kind(err error) string {
	var (
		transportErr *TransportError
		statusErr    *StatusError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "other"
	}
}
