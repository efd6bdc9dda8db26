// Package minimax provides authentication and token management for the MiniMax
// LLM API. It implements the OAuth 2.0 Device Authorization Grant flow for both
// the domestic and global MiniMax platforms, and manages the resulting credential
// across process invocations.
package minimax

import (
	"errors"
	"fmt"
)

// Sentinel errors for the terminal outcomes of the device flow and the token
// lifecycle. Callers classify them with errors.Is.
var (
	// ErrUnknownRegion indicates a region tag outside the supported set.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrAuthorizationDenied indicates the user rejected the authorization request.
	ErrAuthorizationDenied = errors.New("authorization denied by user")

	// ErrDeviceCodeExpired indicates the device session ended before the user approved it.
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrNotAuthenticated indicates no credential is stored for the region.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrReauthRequired indicates the stored credential can no longer be refreshed
	// and the user must run the login flow again.
	ErrReauthRequired = errors.New("re-authentication required")

	// ErrRefreshTransient indicates a refresh attempt failed for a retryable reason
	// (network failure or provider 5xx); the stale credential is left in place.
	ErrRefreshTransient = errors.New("token refresh temporarily unavailable")

	// ErrCorruptTokenFile indicates the token file exists but cannot be parsed.
	ErrCorruptTokenFile = errors.New("corrupt token file")
)

// OAuthError represents a provider-reported OAuth error or a malformed response.
type OAuthError struct {
	// Code is the OAuth error code, or "invalid_response" for unparsable bodies.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error with the specified code, description, and status code.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		StatusCode:  statusCode,
	}
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}
