package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const dateLayout = "2006-01-02"

// Clock is a time of day with minute precision, stored as minutes since
// midnight and written as "HH:mm".
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "HH:mm" with 00 <= HH <= 23.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("%w: time of day %q must be HH:mm", ErrInvalidInput, s)
	}
	return ClockOf(t), nil
}

// ClockOf drops the date and anything below a minute.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Sub returns c - o in minutes.
func (c Clock) Sub(o Clock) int {
	return int(c) - int(o)
}

func (c Clock) Valid() bool {
	return c >= 0 && c < 24*60
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: time of day must be a string", ErrInvalidInput)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) pg() pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}
}

func clockFromPG(t pgtype.Time) Clock {
	return Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// DateOf truncates t to its calendar date. No zone conversion happens: the
// year, month and day are read as stored.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WallClock keeps t's wall-clock reading and drops its offset. Appointment
// times are stored without a zone, so 10:30+02:00 means 10:30 business time.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}

// Date renders as "YYYY-MM-DD" in JSON.
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
