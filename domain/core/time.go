package core

import (
	"time"
)

// Timestamp is a point in time with millisecond precision, the granularity
// Evidence records are stamped with (spec: ISO-8601, millisecond precision).
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Millisecond))
}

// Now returns the current timestamp
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// Sub returns the duration t-u.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Time(t).Sub(time.Time(u))
}

// Add returns t+d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return NewTimestamp(time.Time(t).Add(d))
}

// String renders ISO-8601 with millisecond precision.
func (t Timestamp) String() string {
	return time.Time(t).Format("2006-01-02T15:04:05.000Z07:00")
}

// MarshalJSON for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

// UnmarshalJSON for Timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = NewTimestamp(tm)
	return nil
}

// Day is a date-granularity timestamp, used for Anchor.FirstSeen / LastSeen.
type Day string

const dayLayout = "2006-01-02"

// NewDay truncates t to a calendar date in UTC.
func NewDay(t time.Time) Day {
	return Day(t.UTC().Format(dayLayout))
}

// Today returns the current UTC date.
func Today() Day {
	return NewDay(time.Now())
}

// Time parses the date back into a time.Time at midnight UTC.
func (d Day) Time() (time.Time, error) {
	return time.Parse(dayLayout, string(d))
}

// Before reports whether d is strictly earlier than other (lexicographic
// comparison is safe because the layout is fixed-width and zero-padded).
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

// IsZero reports whether d was never set.
func (d Day) IsZero() bool {
	return d == ""
}
