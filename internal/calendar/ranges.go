package calendar

import "time"

const (
	dateLayout      = "Monday, January 02"
	timeLayout      = "03:04 PM"
	weekLabelLayout = "January 02"
)

// TodayRange returns local midnight of now's day through its last instant.
func TodayRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// WeekRange returns Monday 00:00 through the last instant of Sunday of the
// week containing now.
func WeekRange(now time.Time) (time.Time, time.Time) {
	offset := (int(now.Weekday()) + 6) % 7
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7).Add(-time.Nanosecond)
}

// WeekLabel renders a week range like "January 02 - January 08".
func WeekLabel(start, end time.Time) string {
	return start.Format(weekLabelLayout) + " - " + end.Format(weekLabelLayout)
}
