package models

import (
	"fmt"
	"strings"
	"time"
)

// Date is a civil calendar date with no time zone attached. It is compared
// against the wall-clock date of the location being evaluated.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Valid reports whether d names a real day of the Gregorian calendar.
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && t.Month() == d.Month
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MinutesPerDay is the number of minute slots in a TimeOfDay.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time at minute resolution, stored as minutes
// since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// TimeOfDayOf returns the wall-clock time of t truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay { return NewTimeOfDay(t.Hour(), t.Minute()) }

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t < MinutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeWindow is an inclusive time-of-day range. A window whose Start is
// after its End spans midnight.
type TimeWindow struct {
	Start TimeOfDay `json:"start" yaml:"start"`
	End   TimeOfDay `json:"end" yaml:"end"`
}

// Contains reports whether tod falls inside the window.
func (w TimeWindow) Contains(tod TimeOfDay) bool {
	if w.Start <= w.End {
		return tod >= w.Start && tod <= w.End
	}
	return tod >= w.Start || tod <= w.End
}

// Weekday mirrors time.Weekday but encodes as a short lowercase name.
type Weekday time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or long English day names in any case.
func ParseWeekday(s string) (Weekday, error) {
	if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return Weekday(wd), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (w Weekday) Valid() bool { return w >= Weekday(time.Sunday) && w <= Weekday(time.Saturday) }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return strings.ToLower(time.Weekday(w).String()[:3])
}

func (w Weekday) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// RecurrenceKind selects which Recurrence fields apply.
type RecurrenceKind string

const (
	RecurrenceNone           RecurrenceKind = "none"
	RecurrenceDaily          RecurrenceKind = "daily"
	RecurrenceWeekly         RecurrenceKind = "weekly"
	RecurrenceMonthly        RecurrenceKind = "monthly"
	RecurrenceExplicitDates  RecurrenceKind = "explicit_dates"
	RecurrenceIntervalRepeat RecurrenceKind = "interval_repeat"
)

// MaxExplicitDates caps the number of dates an ExplicitDates recurrence may list.
const MaxExplicitDates = 30

// Recurrence is the tagged recurrence variant of a calendar. Only the fields
// belonging to Kind may be set; an empty Kind behaves as RecurrenceNone.
type Recurrence struct {
	Kind RecurrenceKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// weekly
	Weekdays []Weekday `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`

	// monthly
	Months []int `json:"months,omitempty" yaml:"months,omitempty"`
	Days   []int `json:"days,omitempty" yaml:"days,omitempty"`

	// explicit_dates
	Dates []Date `json:"dates,omitempty" yaml:"dates,omitempty"`

	// interval_repeat
	EveryMinutes int        `json:"every_minutes,omitempty" yaml:"every_minutes,omitempty"`
	StopBefore   *TimeOfDay `json:"stop_before,omitempty" yaml:"stop_before,omitempty"`
}

// EffectiveKind maps the empty kind to RecurrenceNone.
func (r Recurrence) EffectiveKind() RecurrenceKind {
	if r.Kind == "" {
		return RecurrenceNone
	}
	return r.Kind
}

// Calendar is a campaign's playback window.
type Calendar struct {
	StartDate  Date        `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate    *Date       `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Recurrence Recurrence  `json:"recurrence" yaml:"recurrence"`
	Window     *TimeWindow `json:"time_of_day_window,omitempty" yaml:"time_of_day_window,omitempty"`
}

func (c Calendar) clone() Calendar {
	out := c
	if c.EndDate != nil {
		end := *c.EndDate
		out.EndDate = &end
	}
	if c.Window != nil {
		w := *c.Window
		out.Window = &w
	}
	r := c.Recurrence
	r.Weekdays = append([]Weekday(nil), r.Weekdays...)
	r.Months = append([]int(nil), r.Months...)
	r.Days = append([]int(nil), r.Days...)
	r.Dates = append([]Date(nil), r.Dates...)
	if r.StopBefore != nil {
		sb := *r.StopBefore
		r.StopBefore = &sb
	}
	out.Recurrence = r
	return out
}
