package calendar

import "strings"

// Text renders the result as a plain-text chat reply.
func (r Result) Text() string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Events) == 0 {
		return r.Message
	}

	var b strings.Builder
	b.WriteString("Here's what you have scheduled for ")
	switch {
	case r.WeekRange != "":
		b.WriteString(r.WeekRange)
	case r.Date != "":
		b.WriteString(r.Date)
	default:
		b.WriteString("today")
	}
	b.WriteString(":\n\n")

	for _, ev := range r.Events {
		b.WriteString("• ")
		b.WriteString(ev.Title)
		if ev.Date != "" {
			b.WriteString(" on ")
			b.WriteString(ev.Date)
		}
		if ev.Time == allDay {
			b.WriteString(" (all day)")
		} else {
			b.WriteString(" at ")
			b.WriteString(ev.Time)
		}
		if ev.Location != "" {
			b.WriteString(" (")
			b.WriteString(ev.Location)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
