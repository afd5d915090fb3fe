package logic

import (
	"testing"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/models"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) models.Date { return models.Date{Year: y, Month: m, Day: d} }

func TestIsOpen_WeeklyInRange(t *testing.T) {
	end := date(2025, time.January, 31)
	cal := models.Calendar{
		StartDate: date(2025, time.January, 1),
		EndDate:   &end,
		Recurrence: models.Recurrence{
			Kind:     models.RecurrenceWeekly,
			Weekdays: []models.Weekday{models.Weekday(time.Monday), models.Weekday(time.Wednesday)},
		},
	}
	assert.True(t, IsOpen(cal, at(2025, time.January, 6, 12, 0)), "monday")
	assert.False(t, IsOpen(cal, at(2025, time.January, 7, 12, 0)), "tuesday")
	assert.True(t, IsOpen(cal, at(2025, time.January, 8, 0, 0)), "wednesday")
	assert.False(t, IsOpen(cal, at(2025, time.February, 3, 12, 0)), "monday after end")
	assert.False(t, IsOpen(cal, at(2024, time.December, 30, 12, 0)), "monday before start")
}

func TestIsOpen_DateRangeInclusive(t *testing.T) {
	end := date(2025, time.March, 10)
	cal := models.Calendar{StartDate: date(2025, time.March, 1), EndDate: &end}
	assert.True(t, IsOpen(cal, at(2025, time.March, 1, 0, 0)))
	assert.True(t, IsOpen(cal, at(2025, time.March, 10, 23, 59)))
	assert.False(t, IsOpen(cal, at(2025, time.March, 11, 0, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.February, 28, 23, 59)))
}

func TestIsOpen_OpenEnded(t *testing.T) {
	cal := models.Calendar{StartDate: date(2025, time.March, 1), Recurrence: models.Recurrence{Kind: models.RecurrenceDaily}}
	assert.True(t, IsOpen(cal, at(2030, time.July, 4, 9, 0)))
}

func TestIsOpen_MonthlyNonexistentDay(t *testing.T) {
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceMonthly, Months: []int{2}, Days: []int{30}}}
	for _, year := range []int{2024, 2025} {
		for day := time.Date(year, time.January, 1, 12, 0, 0, 0, time.UTC); day.Year() == year; day = day.AddDate(0, 0, 1) {
			if IsOpen(cal, day) {
				t.Fatalf("calendar open on %s", day.Format("2006-01-02"))
			}
		}
	}
}

func TestIsOpen_Monthly(t *testing.T) {
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceMonthly, Months: []int{1, 3}, Days: []int{15, 31}}}
	assert.True(t, IsOpen(cal, at(2025, time.January, 15, 8, 0)))
	assert.True(t, IsOpen(cal, at(2025, time.March, 31, 8, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.February, 15, 8, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.January, 16, 8, 0)))
}

func TestIsOpen_ExplicitDates(t *testing.T) {
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceExplicitDates, Dates: []models.Date{date(2025, time.June, 24)}}}
	assert.True(t, IsOpen(cal, at(2025, time.June, 24, 18, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.June, 25, 18, 0)))
	assert.False(t, IsOpen(cal, at(2026, time.June, 24, 18, 0)))
}

func TestIsOpen_IntervalRepeatCutoff(t *testing.T) {
	stop := models.NewTimeOfDay(21, 0)
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceIntervalRepeat, EveryMinutes: 30, StopBefore: &stop}}
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 20, 59)))
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 21, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 23, 30)))
	assert.True(t, IsOpen(cal, at(2025, time.May, 2, 0, 0)))
}

func TestIsOpen_IntervalRepeatWithoutCutoff(t *testing.T) {
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceIntervalRepeat, EveryMinutes: 15}}
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 23, 59)))
}

func TestIsOpen_TimeOfDayWindow(t *testing.T) {
	cal := models.Calendar{Window: &models.TimeWindow{Start: models.NewTimeOfDay(9, 0), End: models.NewTimeOfDay(17, 0)}}
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 8, 59)))
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 9, 0)))
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 17, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 17, 1)))
}

func TestIsOpen_WindowWrapsMidnight(t *testing.T) {
	cal := models.Calendar{Window: &models.TimeWindow{Start: models.NewTimeOfDay(22, 0), End: models.NewTimeOfDay(2, 0)}}
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 23, 0)))
	assert.True(t, IsOpen(cal, at(2025, time.May, 1, 1, 0)))
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 12, 0)))
}

func TestIsOpen_UsesWallClockOfInstant(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceWeekly, Weekdays: []models.Weekday{models.Weekday(time.Monday)}}}
	// Sunday 20:00 UTC is Monday 05:00 in Tokyo.
	sundayUTC := at(2025, time.January, 5, 20, 0)
	assert.False(t, IsOpen(cal, sundayUTC))
	assert.True(t, IsOpen(cal, sundayUTC.In(tokyo)))
}

func TestIsOpen_UnknownKindClosed(t *testing.T) {
	cal := models.Calendar{Recurrence: models.Recurrence{Kind: "fortnightly"}}
	assert.False(t, IsOpen(cal, at(2025, time.May, 1, 12, 0)))
}
