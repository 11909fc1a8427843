package models

import (
	"time"
)

// User is the durable per-user record. It carries the chat identity, the
// optional calendar credential and the current conversation handle.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`

	Credential        *Credential `json:"calendarTokens,omitempty"`
	CalendarConnected bool        `json:"calendarConnected"`

	ConversationID string `json:"conversationId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile holds the identity fields a chat transport reports for a user.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the best human-facing name for the user.
func (p Profile) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	if p.Username != "" {
		return p.Username
	}
	return "there"
}
