// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredential indicates no OpenRouter API key was configured.
var ErrMissingCredential = errors.New("OPENROUTER_API_KEY is not set")

// HTTPError is a transport failure or a non-2xx response. Status is 0 when
// no response was received (DNS, refused connection, timeout).
type HTTPError struct {
	Status  int
	Method  string
	URL     string
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d [%s] from %s: %s", e.Status, e.Code, e.URL, msg)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.Status, e.URL, msg)
}

// Unwrap returns the underlying transport error, if any.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsPaymentRequired reports whether the server answered 402.
func (e *HTTPError) IsPaymentRequired() bool {
	return e.Status == http.StatusPaymentRequired
}

// IsPaymentRequired reports whether err carries an HTTP 402 anywhere in its chain.
func IsPaymentRequired(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsPaymentRequired()
}

// MalformedResponseError means a 2xx payload lacked the fields we need.
type MalformedResponseError struct {
	What string
	Err  error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.What, e.Err)
	}
	return "malformed response: " + e.What
}

// Unwrap returns the decode error, if any.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
