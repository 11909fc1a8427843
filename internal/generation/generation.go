// Package generation talks to the language-model service that holds each
// user's conversation and decides when to call a calendar tool.
package generation

import (
	"context"
	"errors"
)

// ErrPendingToolCall reports that the conversation ends with a tool call
// that never received an output, so the service refuses new input on it.
var ErrPendingToolCall = errors.New("conversation has a pending tool call")

// Tool is a parameterless function the model may ask to call.
type Tool struct {
	Name        string
	Description string
}

type Request struct {
	ConversationID string
	Model          string
	Instructions   string
	Input          string
	Tools          []Tool
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Response carries either Text or a ToolCall. Both empty means the model
// produced nothing usable.
type Response struct {
	ID       string
	Text     string
	ToolCall *ToolCall
}

type Generator interface {
	// CreateConversation opens a conversation tagged with metadata. A
	// non-empty seed is stored as its first user message.
	CreateConversation(ctx context.Context, metadata map[string]string, seed string) (string, error)
	Respond(ctx context.Context, req Request) (Response, error)
}
