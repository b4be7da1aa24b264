package taskquery

import (
	"errors"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("invalid deadline date, expected YYYY-MM-DD")
	ErrInvalidTime = errors.New("invalid deadline time, expected HH:MM")
	// ErrSkippedTime reports a wall-clock time that a daylight-saving jump
	// skips in the deadline's zone.
	ErrSkippedTime = errors.New("deadline time does not exist on that date")
)

// ComposeDeadline joins a form date and optional clock time into one instant
// using the machine's local zone.
func ComposeDeadline(date, clock string) (*time.Time, error) {
	return ComposeDeadlineIn(time.Local, date, clock)
}

// ComposeDeadlineIn returns nil for a blank date. A blank clock means
// midnight in loc; otherwise the wall-clock time in loc is used. A time that
// falls in a spring-forward gap is rejected with ErrSkippedTime instead of
// being shifted.
func ComposeDeadlineIn(loc *time.Location, date, clock string) (*time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	date = strings.TrimSpace(date)
	if date == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	hour, minute := 0, 0
	if clock = strings.TrimSpace(clock); clock != "" {
		parsed, err := time.Parse(ClockLayout, clock)
		if err != nil {
			return nil, ErrInvalidTime
		}
		hour, minute = parsed.Hour(), parsed.Minute()
	}

	deadline := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	if deadline.Hour() != hour || deadline.Minute() != minute || deadline.Day() != day.Day() {
		return nil, ErrSkippedTime
	}
	return &deadline, nil
}

// DecomposeDeadline splits a stored deadline back into form values in the
// machine's local zone.
func DecomposeDeadline(deadline *time.Time) (date, clock string) {
	return DecomposeDeadlineIn(time.Local, deadline)
}

func DecomposeDeadlineIn(loc *time.Location, deadline *time.Time) (date, clock string) {
	if deadline == nil || deadline.IsZero() {
		return "", ""
	}
	if loc == nil {
		loc = time.Local
	}
	local := deadline.In(loc)
	return local.Format(DateLayout), local.Format(ClockLayout)
}

// FormatDeadline renders a deadline for display, or "n/a".
func FormatDeadline(deadline *time.Time) string {
	date, clock := DecomposeDeadline(deadline)
	if date == "" {
		return "n/a"
	}
	return date + " " + clock
}
