package models

import (
	"time"

	"golang.org/x/oauth2"
)

// FlowState is an in-progress authorization handshake. It lives only in
// process memory and is keyed by its random state token.
type FlowState struct {
	State         string
	ExpectedState string
	UserID        int64

	// Config is the provider endpoint configuration the handshake started with.
	Config   *oauth2.Config
	Verifier string

	// Attempts counts failed code exchanges against this flow.
	Attempts int

	CreatedAt time.Time
	// ExpiresAt is zero when the flow has no lifetime bound.
	ExpiresAt time.Time
}

// Expired reports whether the flow outlived its lifetime at now.
func (f *FlowState) Expired(now time.Time) bool {
	if f.ExpiresAt.IsZero() {
		return false
	}
	return now.After(f.ExpiresAt)
}

// Authorization is a started handshake: where to send the browser and the
// state the browser has to carry back.
type Authorization struct {
	URL   string
	State string
	// ExpiresAt is zero when the flow has no lifetime bound.
	ExpiresAt time.Time
}

// CallbackParams are the query parameters the provider redirects back with.
// ExpectedState is the state remembered by the browser that started the
// handshake, not something the provider sends.
type CallbackParams struct {
	State         string
	ExpectedState string
	Code          string
	Error         string
}
