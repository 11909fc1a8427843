// Package calendar fetches a user's events for today or the current week
// and shapes them into the structured result the assistant replies with.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
	"golang.org/x/oauth2"
)

type Kind string

const (
	Today Kind = "today"
	Week  Kind = "week"
)

// ParseKind maps a range name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case Today, Week:
		return Kind(s), true
	}
	return "", false
}

const (
	MsgNotConnected   = "Calendar not connected. Please use /connect_calendar to set up your calendar first."
	MsgTokensNotFound = "Calendar tokens not found. Please reconnect your calendar."
	MsgReauthorize    = "Calendar access has expired. Please use /connect_calendar to connect your calendar again."
	MsgFetchFailed    = "Failed to fetch calendar data. Please try again later."
	MsgNoEventsToday  = "No events scheduled for today."
	MsgNoEventsWeek   = "No events scheduled for this week."
	untitled          = "No Title"
	allDay            = "All day"
)

type EventView struct {
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Result is the outcome of a calendar fetch. Exactly one of Error or
// Events (possibly empty, with Message) is meaningful.
type Result struct {
	Events    []EventView
	Message   string
	Date      string
	WeekRange string
	Error     string
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	events := r.Events
	if events == nil {
		events = []EventView{}
	}
	return json.Marshal(struct {
		Events    []EventView `json:"events"`
		Message   string      `json:"message,omitempty"`
		Date      string      `json:"date,omitempty"`
		WeekRange string      `json:"week_range,omitempty"`
	}{events, r.Message, r.Date, r.WeekRange})
}

// CredentialStore is the slice of the token store the fetch path needs.
type CredentialStore interface {
	IsConnected(ctx context.Context, userID int64) (bool, error)
	UpdateCredential(ctx context.Context, userID int64, fn func(models.Credential) (models.Credential, error)) (bool, error)
}

// Refresher makes a stored credential usable.
type Refresher interface {
	EnsureFresh(ctx context.Context, rec models.Credential) (oauth2.TokenSource, models.Credential, error)
}

type Service struct {
	accounts  CredentialStore
	refresher Refresher
	lister    Lister
	timeout   time.Duration
	location  *time.Location

	now func() time.Time
}

// NewService builds the fetch path. A zero timeout leaves calendar calls
// bounded only by the caller's context; a nil location uses time.Local.
func NewService(accounts CredentialStore, refresher Refresher, lister Lister, timeout time.Duration, location *time.Location) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		accounts:  accounts,
		refresher: refresher,
		lister:    lister,
		timeout:   timeout,
		location:  location,
		now:       time.Now,
	}
}

func (s *Service) Today(ctx context.Context, userID int64) (Result, error) {
	return s.Fetch(ctx, userID, Today)
}

func (s *Service) Week(ctx context.Context, userID int64) (Result, error) {
	return s.Fetch(ctx, userID, Week)
}

// Fetch lists the user's events for kind. Conditions the user can fix
// (not connected, missing or revoked tokens) come back as Result.Error
// with a nil error. Infrastructure failures return both a generic
// Result.Error and the underlying error.
func (s *Service) Fetch(ctx context.Context, userID int64, kind Kind) (Result, error) {
	connected, err := s.accounts.IsConnected(ctx, userID)
	if err != nil {
		return Result{Error: MsgFetchFailed}, err
	}
	if !connected {
		return Result{Error: MsgNotConnected}, nil
	}

	var ts oauth2.TokenSource
	changed, err := s.accounts.UpdateCredential(ctx, userID, func(rec models.Credential) (models.Credential, error) {
		source, updated, err := s.refresher.EnsureFresh(ctx, rec)
		if err != nil {
			return rec, err
		}
		ts = source
		return updated, nil
	})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return Result{Error: MsgTokensNotFound}, nil
	case errors.Is(err, apperr.ErrReauthorizationRequired):
		slog.Warn("Calendar credential needs reauthorization", "user_id", userID, "error", err)
		return Result{Error: MsgReauthorize}, nil
	case err != nil:
		return Result{Error: MsgFetchFailed}, err
	}
	if changed {
		slog.Info("Calendar tokens refreshed", "user_id", userID)
	}

	now := s.now().In(s.location)
	var start, end time.Time
	if kind == Week {
		start, end = WeekRange(now)
	} else {
		start, end = TodayRange(now)
	}

	listCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	events, err := s.lister.List(listCtx, ts, start, end)
	if err != nil {
		return Result{Error: MsgFetchFailed}, apperr.Wrap(apperr.ErrTransient, fmt.Errorf("list %s events: %w", kind, err))
	}

	return s.structure(kind, events, now, start, end), nil
}

func (s *Service) structure(kind Kind, events []models.Event, now, start, end time.Time) Result {
	if len(events) == 0 {
		if kind == Week {
			return Result{Events: []EventView{}, Message: MsgNoEventsWeek}
		}
		return Result{Events: []EventView{}, Message: MsgNoEventsToday}
	}

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		view := EventView{
			Title:       ev.Summary,
			Location:    ev.Location,
			Description: ev.Description,
		}
		if view.Title == "" {
			view.Title = untitled
		}

		at := ev.Start
		view.Time = allDay
		if !ev.AllDay {
			at = at.In(s.location)
			view.Time = at.Format(timeLayout)
		}
		if kind == Week {
			view.Date = at.Format(dateLayout)
		}
		views = append(views, view)
	}

	res := Result{Events: views}
	if kind == Week {
		res.WeekRange = WeekLabel(start, end)
	} else {
		res.Date = now.Format(dateLayout)
	}
	return res
}
