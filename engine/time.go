package engine

import (
	"strings"
	"time"
)

// =============================================================================
// DATE - Day-granularity time point (leave windows are inclusive day ranges)
// =============================================================================

// Date is a calendar day, normalized to midnight UTC. All leave, subscription
// and off-day boundaries are day-granular; sub-day precision appears only in
// the notice-period check, which compares against the injected clock.
type Date struct {
	t time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) String() string     { return d.t.Format("2006-01-02") }
func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }

// EndOfDay returns the last instant of the day (23:59:59), the inclusive
// upper boundary a leave window normalizes to.
func (d Date) EndOfDay() time.Time {
	return d.t.Add(24*time.Hour - time.Second)
}

// JSON encoding uses the ISO date form; the zero Date is null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func LaterOf(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func EarlierOf(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysBetween returns the number of whole days from one date to another.
// Negative when to precedes from.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// WINDOW - Inclusive day range
// =============================================================================

type Window struct {
	Start Date
	End   Date
}

func (w Window) Valid() bool { return !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start) }

// Days returns the inclusive day count, 0 for an invalid window.
func (w Window) Days() int {
	if !w.Valid() {
		return 0
	}
	return DaysBetween(w.Start, w.End) + 1
}

func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

// Intersects reports whether two inclusive windows share at least one day.
func (w Window) Intersects(o Window) bool {
	return !w.Start.After(o.End) && !o.Start.After(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies the current instant for notice-period checks. Injecting it
// keeps policy evaluation deterministic in tests; nothing else in the engine
// reads ambient time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
