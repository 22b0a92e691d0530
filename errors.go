package sse

import (
	"errors"
	"fmt"
	"net/http"
)

// ConnectionError is the type that wraps all the failures of a single
// connection attempt. These failures are absorbed by the Client: they end the
// attempt and are passed to the ErrorHandler.
type ConnectionError struct {
	// The request for which the connection failed. It is nil if the request
	// couldn't be created.
	Req *http.Request
	// The reason the operation failed.
	Err error
	// The reason why the request failed.
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("request failed: %s: %v", e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Temporary returns whether the underlying error is temporary.
func (e *ConnectionError) Temporary() bool {
	var t interface{ Temporary() bool }
	if errors.As(e.Err, &t) {
		return t.Temporary()
	}
	return false
}

// Timeout returns whether the underlying error is caused by a timeout.
func (e *ConnectionError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// StatusError is returned by DefaultValidator when the server responds with
// a status code other than 200 OK.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("expected status code %d %s, received %d %s", http.StatusOK, http.StatusText(http.StatusOK), e.Code, http.StatusText(e.Code))
}

// Temporary reports whether retrying the same request may succeed.
// Server errors, 408 Request Timeout and 429 Too Many Requests are temporary.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests
}

// ErrUnexpectedContentType is wrapped by the error DefaultValidator returns
// when the response isn't an event stream.
var ErrUnexpectedContentType = errors.New("unexpected content type")

// ErrAttemptsExhausted is returned when the Client stopped because it made
// MaxAttempts connection attempts.
var ErrAttemptsExhausted = errors.New("maximum number of connection attempts reached")

// ErrorHandler is a callback that gets called every time a connection attempt
// fails, including mid-stream failures and errors returned by an EventHandler.
// Cancellation of the Client's context is never passed to it.
//
// If the handler returns nil, the error is treated as handled and the Client
// reconnects with the last event ID it has. If it returns an error, the Client
// stops and reports that error.
type ErrorHandler func(error) error

// List of commonly used error handler function implementations.
var (
	// ReconnectOnError absorbs every failure. The Client keeps reconnecting
	// with the same last event ID, even if the server rejects it.
	ReconnectOnError ErrorHandler = func(error) error { return nil }
	// StopOnError stops the Client on the first failure.
	StopOnError ErrorHandler = func(err error) error { return err }
	// StopOnClientError stops the Client when the server rejects the request
	// with a 4xx status that isn't temporary, for example because it doesn't
	// accept the last event ID, or responds with 204 No Content, which servers
	// use to tell clients to stop reconnecting. Other failures are absorbed.
	StopOnClientError ErrorHandler = func(err error) error {
		if IsClientError(err) || isNoContent(err) {
			return err
		}
		return nil
	}
)

// IsClientError reports whether err was caused by a response with a 4xx
// status that won't change if the same request is sent again.
func IsClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code >= 400 && se.Code < 500 && !se.Temporary()
}

func isNoContent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNoContent
}
