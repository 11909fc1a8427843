// Package conversation runs chat turns against a long-lived conversation
// per user, recovering once from a conversation left with a dangling tool
// call.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/generation"
	"github.com/andyleap/donna/internal/userlock"
)

const (
	// FallbackText is sent when the model returns neither text nor a tool call.
	FallbackText = "I received your message but couldn't generate a proper response. Please try again."

	noEventsToday = "You have no events scheduled for today."
	noEventsWeek  = "You have no events scheduled for this week."

	resetReasonPendingToolCall = "Corrupted conversation state with pending function call"
)

// HandleStore persists the conversation handle of each user.
type HandleStore interface {
	ConversationID(ctx context.Context, userID int64) (string, error)
	SaveConversationID(ctx context.Context, userID int64, conversationID string) error
}

type CalendarFetcher interface {
	Fetch(ctx context.Context, userID int64, kind calendar.Kind) (calendar.Result, error)
}

type TurnInput struct {
	UserID   int64
	Username string
	Text     string
}

// Output is the reply for one turn. Calendar is set when the model asked
// for a calendar tool; Text is then its rendering.
type Output struct {
	Text     string
	Tool     string
	Calendar *calendar.Result
}

type Manager struct {
	handles   HandleStore
	generator generation.Generator
	calendar  CalendarFetcher
	profile   Profile
	timeout   time.Duration
	locks     *userlock.Locker
}

// NewManager builds a Manager. timeout bounds each generation call; zero
// leaves them bounded only by the turn's context.
func NewManager(handles HandleStore, generator generation.Generator, fetcher CalendarFetcher, profile Profile, timeout time.Duration) *Manager {
	return &Manager{
		handles:   handles,
		generator: generator,
		calendar:  fetcher,
		profile:   profile,
		timeout:   timeout,
		locks:     userlock.New(),
	}
}

// Turn submits one user message. Turns of the same user are serialized for
// the whole read, submit, reset and persist sequence.
func (m *Manager) Turn(ctx context.Context, in TurnInput) (Output, error) {
	unlock, err := m.locks.Lock(ctx, in.UserID)
	if err != nil {
		return Output{}, err
	}
	defer unlock()

	handle, err := m.handles.ConversationID(ctx, in.UserID)
	if err != nil {
		return Output{}, err
	}
	if handle == "" {
		username := in.Username
		if username == "" {
			username = "unknown"
		}
		handle, err = m.open(ctx, in.UserID, map[string]string{
			"user_id":  strconv.FormatInt(in.UserID, 10),
			"username": username,
		}, in.Text)
		if err != nil {
			return Output{}, err
		}
		slog.Info("Conversation created", "user_id", in.UserID, "conversation_id", handle)
	}

	res, err := m.respond(ctx, handle, in.Text)
	if errors.Is(err, generation.ErrPendingToolCall) {
		slog.Warn("Conversation has a pending tool call, resetting", "user_id", in.UserID, "conversation_id", handle)
		handle, err = m.open(ctx, in.UserID, map[string]string{
			"user_id":      strconv.FormatInt(in.UserID, 10),
			"reset_reason": resetReasonPendingToolCall,
		}, "")
		if err != nil {
			return Output{}, err
		}
		res, err = m.respond(ctx, handle, in.Text)
	}
	if err != nil {
		return Output{}, apperr.Wrap(apperr.ErrGeneration, err)
	}

	if res.ToolCall != nil {
		return m.dispatch(ctx, in.UserID, res.ToolCall), nil
	}
	if res.Text == "" {
		slog.Warn("No usable content in response", "user_id", in.UserID, "response_id", res.ID)
		return Output{Text: FallbackText}, nil
	}
	return Output{Text: res.Text}, nil
}

// open creates a conversation and persists its handle before returning it.
func (m *Manager) open(ctx context.Context, userID int64, metadata map[string]string, seed string) (string, error) {
	callCtx, cancel := m.bound(ctx)
	defer cancel()

	handle, err := m.generator.CreateConversation(callCtx, metadata, seed)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrGeneration, err)
	}
	if err := m.handles.SaveConversationID(ctx, userID, handle); err != nil {
		return "", fmt.Errorf("persist conversation %s: %w", handle, err)
	}
	return handle, nil
}

func (m *Manager) respond(ctx context.Context, handle, text string) (generation.Response, error) {
	callCtx, cancel := m.bound(ctx)
	defer cancel()

	return m.generator.Respond(callCtx, generation.Request{
		ConversationID: handle,
		Model:          m.profile.Model,
		Instructions:   m.profile.Instructions,
		Input:          text,
		Tools:          m.profile.Tools(),
	})
}

// dispatch runs a requested tool. Its result goes straight to the user and
// is not submitted back to the model.
func (m *Manager) dispatch(ctx context.Context, userID int64, call *generation.ToolCall) Output {
	slog.Info("Tool call requested", "user_id", userID, "tool", call.Name)

	kind, ok := toolKinds[call.Name]
	if !ok {
		res := calendar.Result{Error: "Unknown function: " + call.Name}
		return Output{Text: res.Text(), Tool: call.Name, Calendar: &res}
	}

	res, err := m.calendar.Fetch(ctx, userID, kind)
	if err != nil {
		slog.Error("Calendar fetch failed", "user_id", userID, "tool", call.Name, "error", err)
	}
	text := res.Text()
	if res.Error == "" && len(res.Events) == 0 {
		text = noEventsToday
		if kind == calendar.Week {
			text = noEventsWeek
		}
	}
	return Output{Text: text, Tool: call.Name, Calendar: &res}
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}
