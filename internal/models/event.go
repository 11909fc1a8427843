package models

import (
	"time"
)

// Event is one calendar entry as returned by the calendar provider.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	AllDay      bool
}
