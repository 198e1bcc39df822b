package core

import (
	"fmt"
	"time"
)

// DateLayout is the wire layout for calendar dates.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now().UTC())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// TruncateDay normalizes t to midnight UTC of its calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return TruncateDay(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)) / day)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want %s): %w", s, DateLayout, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return DaysBetween(r.Start, r.End) + 1
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", FormatDate(r.Start), FormatDate(r.End))
}
