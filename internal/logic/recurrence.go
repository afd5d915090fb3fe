package logic

import (
	"time"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// IsOpen reports whether cal allows playback at now. now must already be in
// the location's wall-clock time zone; dates and times of day are read from
// it directly.
func IsOpen(cal models.Calendar, now time.Time) bool {
	today := models.DateOf(now)

	if !cal.StartDate.IsZero() && today.Before(cal.StartDate) {
		return false
	}
	if cal.EndDate != nil && today.After(*cal.EndDate) {
		return false
	}

	r := cal.Recurrence
	switch r.EffectiveKind() {
	case models.RecurrenceNone, models.RecurrenceDaily, models.RecurrenceIntervalRepeat:
	case models.RecurrenceWeekly:
		if !containsWeekday(r.Weekdays, now.Weekday()) {
			return false
		}
	case models.RecurrenceMonthly:
		// A day that does not exist in the month (Feb 30) never matches.
		if !containsInt(r.Months, int(today.Month)) || !containsInt(r.Days, today.Day) {
			return false
		}
	case models.RecurrenceExplicitDates:
		if !containsDate(r.Dates, today) {
			return false
		}
	default:
		return false
	}

	tod := models.TimeOfDayOf(now)
	if cal.Window != nil && !cal.Window.Contains(tod) {
		return false
	}
	if r.EffectiveKind() == models.RecurrenceIntervalRepeat && r.StopBefore != nil && tod >= *r.StopBefore {
		return false
	}
	return true
}

func containsWeekday(set []models.Weekday, wd time.Weekday) bool {
	for _, w := range set {
		if time.Weekday(w) == wd {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsDate(set []models.Date, d models.Date) bool {
	for _, s := range set {
		if s == d {
			return true
		}
	}
	return false
}
