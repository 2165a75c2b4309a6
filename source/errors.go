// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"errors"
	"fmt"
)

// APIError is a structured error response from the notification server.
//
//	var apiErr *source.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == source.CodeNotFound { ... }
type APIError struct {
	// Code is the server error code (e.g. "NOT_FOUND").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Server error codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnknown      = "UNKNOWN"
)

// IsAPIError reports whether err is a *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
