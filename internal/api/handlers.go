package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/conversation"
	"github.com/andyleap/donna/internal/models"
)

type Accounts interface {
	Register(ctx context.Context, profile models.Profile) (bool, error)
	CountUsers(ctx context.Context) (int, error)
	IsConnected(ctx context.Context, userID int64) (bool, error)
	Disconnect(ctx context.Context, userID int64) error
}

type CalendarFetcher interface {
	Fetch(ctx context.Context, userID int64, kind calendar.Kind) (calendar.Result, error)
}

type Conversations interface {
	Turn(ctx context.Context, in conversation.TurnInput) (conversation.Output, error)
}

// Server exposes the chat commands as a JSON API.
type Server struct {
	accounts      Accounts
	calendar      CalendarFetcher
	conversations Conversations
}

func NewServer(accounts Accounts, fetcher CalendarFetcher, conversations Conversations) *Server {
	return &Server{
		accounts:      accounts,
		calendar:      fetcher,
		conversations: conversations,
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterHandler registers or refreshes a user.
// POST /api/v1/users/{userId}
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	isNew, err := s.accounts.Register(r.Context(), models.Profile{
		ID:        userID,
		Username:  request.Username,
		FirstName: request.FirstName,
		LastName:  request.LastName,
	})
	if err != nil {
		s.fail(w, userID, "Failed to register user", err)
		return
	}
	total, err := s.accounts.CountUsers(r.Context())
	if err != nil {
		s.fail(w, userID, "Failed to count users", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"new":         isNew,
		"total_users": total,
	})
}

// CalendarStatusHandler reports whether a calendar is linked.
// GET /api/v1/users/{userId}/calendar
func (s *Server) CalendarStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	connected, err := s.accounts.IsConnected(r.Context(), userID)
	if err != nil {
		s.fail(w, userID, "Failed to check calendar connection", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}

// DisconnectHandler unlinks the calendar. Repeating it is harmless.
// DELETE /api/v1/users/{userId}/calendar
func (s *Server) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := s.accounts.Disconnect(r.Context(), userID); err != nil {
		s.fail(w, userID, "Failed to disconnect calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// EventsHandler returns today's or this week's events.
// GET /api/v1/users/{userId}/events?range=today|week
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = string(calendar.Today)
	}
	kind, ok := calendar.ParseKind(rng)
	if !ok {
		writeError(w, http.StatusBadRequest, "range must be today or week")
		return
	}

	res, err := s.calendar.Fetch(r.Context(), userID, kind)
	if err != nil {
		slog.Error("Failed to fetch events", "user_id", userID, "range", kind, "error", err)
		writeJSON(w, statusFor(err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MessageHandler runs one assistant turn.
// POST /api/v1/users/{userId}/messages
func (s *Server) MessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var request struct {
		Text     string `json:"text"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if request.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	out, err := s.conversations.Turn(r.Context(), conversation.TurnInput{
		UserID:   userID,
		Username: request.Username,
		Text:     request.Text,
	})
	if err != nil {
		s.fail(w, userID, "Failed to handle message", err)
		return
	}

	response := map[string]any{"text": out.Text}
	if out.Calendar != nil {
		response["calendar"] = out.Calendar
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) fail(w http.ResponseWriter, userID int64, msg string, err error) {
	slog.Error(msg, "user_id", userID, "error", err)
	writeError(w, statusFor(err), msg)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId must be an integer")
		return 0, false
	}
	return userID, true
}
