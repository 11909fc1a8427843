package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/andyleap/donna/internal/models"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Lister reads the events of a user's primary calendar between start and
// end, ordered by start time.
type Lister interface {
	List(ctx context.Context, ts oauth2.TokenSource, start, end time.Time) ([]models.Event, error)
}

// GoogleLister reads events through the Google Calendar API.
type GoogleLister struct {
	// Endpoint overrides the API base URL; empty uses Google's.
	Endpoint string
	// Location anchors all-day dates; nil uses time.Local.
	Location *time.Location
}

func (g *GoogleLister) List(ctx context.Context, ts oauth2.TokenSource, start, end time.Time) ([]models.Event, error) {
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint))
	}

	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	call := srv.Events.List("primary").
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var events []models.Event
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, err := g.convert(item)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (g *GoogleLister) convert(item *gcal.Event) (models.Event, error) {
	ev := models.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start == nil {
		return ev, fmt.Errorf("event %s has no start", item.Id)
	}

	if item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return ev, fmt.Errorf("failed to parse start of event %s: %w", item.Id, err)
		}
		ev.Start = start
		return ev, nil
	}

	loc := g.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
	if err != nil {
		return ev, fmt.Errorf("failed to parse date of event %s: %w", item.Id, err)
	}
	ev.Start = start
	ev.AllDay = true
	return ev, nil
}
