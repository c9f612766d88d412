package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization errors
	ErrStateMismatch    = fmt.Errorf("authorization state mismatch")
	ErrExchangeFailed   = fmt.Errorf("token exchange failed")
	ErrLoginPending     = fmt.Errorf("another login is already pending")
	ErrNoLoginPending   = fmt.Errorf("no login pending")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized     = fmt.Errorf("access token rejected")

	// Request and transfer errors
	ErrRateLimited       = fmt.Errorf("rate limited")
	ErrRequestFailed     = fmt.Errorf("request failed")
	ErrContainerCreation = fmt.Errorf("container creation failed")
	ErrGroupNotFound     = fmt.Errorf("group not found")
	ErrUnknownGroupKind  = fmt.Errorf("unknown group kind")
	ErrProviderNotFound  = fmt.Errorf("provider not found")
	ErrSameProvider      = fmt.Errorf("source and target are the same provider")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
