// Package apperr defines the failure taxonomy shared by the handshake,
// refresh, conversation and storage paths.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates missing or invalid provider setup.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidState indicates a callback whose state token is missing,
	// unknown, expired or mismatched.
	ErrInvalidState = errors.New("invalid state parameter")
	// ErrMissingCode indicates a callback without an authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrAuthorizationDenied indicates the provider reported an error
	// instead of a code.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrExchange indicates the code-for-token exchange failed.
	ErrExchange = errors.New("token exchange failed")
	// ErrReauthorizationRequired indicates the stored credential can no
	// longer be refreshed.
	ErrReauthorizationRequired = errors.New("reauthorization required")
	// ErrTransient indicates a network or service-level failure the caller
	// may retry.
	ErrTransient = errors.New("transient service error")
	// ErrGeneration indicates the generation service failed after the
	// conversation recovery attempt.
	ErrGeneration = errors.New("generation service error")
	// ErrStorage indicates a persistence failure.
	ErrStorage = errors.New("storage error")
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
)

// DeniedError carries the reason a provider gave for refusing consent.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// Is lets errors.Is match ErrAuthorizationDenied.
func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

// Wrap tags err with kind unless err is nil. Deadline and cancellation
// failures are tagged as transient regardless of kind.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && kind != ErrTransient {
		return fmt.Errorf("%w: %w: %w", kind, ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
