package models

import (
	"fmt"
	"strings"
)

const (
	MinPriority = 1
	MaxPriority = 10
)

// FieldError describes one invalid campaign field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	CampaignID string       `json:"campaign_id,omitempty"`
	Fields     []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	if e.CampaignID != "" {
		return fmt.Sprintf("campaign %s invalid: %s", e.CampaignID, strings.Join(parts, "; "))
	}
	return "campaign invalid: " + strings.Join(parts, "; ")
}

type validator struct {
	fields   []FieldError
	warnings []string
}

func (v *validator) fail(field, format string, args ...any) {
	v.fields = append(v.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warn(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// Validate checks the campaign's invariants. It returns non-fatal warnings
// (unknown predicate keys) and, when anything is malformed, a
// *ValidationError naming every failing field.
func (c Campaign) Validate() ([]string, error) {
	v := &validator{}

	if strings.TrimSpace(c.ID) == "" {
		v.fail("id", "is required")
	}
	if c.Priority < MinPriority || c.Priority > MaxPriority {
		v.fail("priority", "must be between %d and %d, got %d", MinPriority, MaxPriority, c.Priority)
	}
	if len(c.LocationScope) == 0 {
		v.fail("location_scope", "must name at least one location")
	}
	for i, id := range c.LocationScope {
		if strings.TrimSpace(id) == "" {
			v.fail(fmt.Sprintf("location_scope[%d]", i), "must not be empty")
		}
	}
	if c.MinSpacingMinutes < 0 {
		v.fail("min_spacing_minutes", "must not be negative")
	}

	if len(c.Conditions) == 0 {
		v.fail("conditions", "at least one condition is required")
	}
	for i, p := range c.Conditions {
		validatePredicate(v, fmt.Sprintf("conditions[%d]", i), p)
	}

	validateCalendar(v, c.Calendar)

	if len(v.fields) > 0 {
		return v.warnings, &ValidationError{CampaignID: c.ID, Fields: v.fields}
	}
	return v.warnings, nil
}

func validatePredicate(v *validator, field string, p Predicate) {
	if p.Category == "" {
		v.fail(field+".category", "is required")
	}
	if p.Key == "" {
		v.fail(field+".key", "is required")
	}
	if p.Category == "" || p.Key == "" {
		return
	}
	spec, ok := LookupKey(p.Category, p.Key)
	if !ok {
		v.warn("%s: unknown predicate %s.%s never matches", field, p.Category, p.Key)
		return
	}
	if !spec.Supports(p.Operator) {
		v.fail(field+".operator", "%q is not supported for %s.%s", p.Operator, p.Category, p.Key)
		return
	}

	op := p.Operator.Canonical()
	switch spec.Kind {
	case KindNumber:
		if p.Operand.Number == nil {
			v.fail(field+".operand.number", "is required for %s", op)
		}
	case KindText, KindEnum:
		if op == OpIn {
			if len(p.Operand.Set) == 0 {
				v.fail(field+".operand.set", "must not be empty")
			}
		} else if strings.TrimSpace(p.Operand.Text) == "" {
			v.fail(field+".operand.text", "is required for %s", op)
		}
		if strings.EqualFold(p.Key, KeyWeekday) {
			values := p.Operand.Set
			if op != OpIn {
				values = []string{p.Operand.Text}
			}
			for _, s := range values {
				if _, err := ParseWeekday(s); err != nil {
					v.fail(field+".operand", "%v", err)
				}
			}
		}
	case KindTimeOfDay:
		if p.Operand.Window == nil {
			v.fail(field+".operand.window", "is required for %s", op)
		} else {
			validateWindow(v, field+".operand.window", *p.Operand.Window)
		}
	case KindBool:
	}
}

func validateWindow(v *validator, field string, w TimeWindow) {
	if !w.Start.Valid() {
		v.fail(field+".start", "must be between 00:00 and 23:59")
	}
	if !w.End.Valid() {
		v.fail(field+".end", "must be between 00:00 and 23:59")
	}
}

func validateCalendar(v *validator, cal Calendar) {
	if !cal.StartDate.IsZero() && !cal.StartDate.Valid() {
		v.fail("calendar.start_date", "is not a valid date")
	}
	if cal.EndDate != nil {
		switch {
		case !cal.EndDate.Valid():
			v.fail("calendar.end_date", "is not a valid date")
		case !cal.StartDate.IsZero() && cal.EndDate.Before(cal.StartDate):
			v.fail("calendar.end_date", "must not be before start_date %s", cal.StartDate)
		}
	}
	if cal.Window != nil {
		validateWindow(v, "calendar.time_of_day_window", *cal.Window)
	}

	r := cal.Recurrence
	const prefix = "calendar.recurrence."
	kind := r.EffectiveKind()
	switch kind {
	case RecurrenceNone, RecurrenceDaily:
	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			v.fail(prefix+"weekdays", "must not be empty for weekly recurrence")
		}
		for i, wd := range r.Weekdays {
			if !wd.Valid() {
				v.fail(fmt.Sprintf("%sweekdays[%d]", prefix, i), "is not a weekday")
			}
		}
	case RecurrenceMonthly:
		if len(r.Months) == 0 {
			v.fail(prefix+"months", "must not be empty for monthly recurrence")
		}
		for i, m := range r.Months {
			if m < 1 || m > 12 {
				v.fail(fmt.Sprintf("%smonths[%d]", prefix, i), "must be between 1 and 12, got %d", m)
			}
		}
		if len(r.Days) == 0 {
			v.fail(prefix+"days", "must not be empty for monthly recurrence")
		}
		for i, d := range r.Days {
			if d < 1 || d > 31 {
				v.fail(fmt.Sprintf("%sdays[%d]", prefix, i), "must be between 1 and 31, got %d", d)
			}
		}
	case RecurrenceExplicitDates:
		if len(r.Dates) == 0 {
			v.fail(prefix+"dates", "must not be empty for explicit_dates recurrence")
		}
		if len(r.Dates) > MaxExplicitDates {
			v.fail(prefix+"dates", "at most %d dates allowed, got %d", MaxExplicitDates, len(r.Dates))
		}
		for i, d := range r.Dates {
			if !d.Valid() {
				v.fail(fmt.Sprintf("%sdates[%d]", prefix, i), "is not a valid date")
			}
		}
	case RecurrenceIntervalRepeat:
		if !validEveryMinutes(r.EveryMinutes) {
			v.fail(prefix+"every_minutes", "must be 1-59 or a whole number of hours up to 24, got %d", r.EveryMinutes)
		}
		if r.StopBefore != nil && !r.StopBefore.Valid() {
			v.fail(prefix+"stop_before", "must be between 00:00 and 23:59")
		}
	default:
		v.fail(prefix+"kind", "unknown recurrence %q", r.Kind)
		return
	}

	// Fields belonging to another variant are rejected.
	if kind != RecurrenceWeekly && len(r.Weekdays) > 0 {
		v.fail(prefix+"weekdays", "only valid for weekly recurrence")
	}
	if kind != RecurrenceMonthly && (len(r.Months) > 0 || len(r.Days) > 0) {
		v.fail(prefix+"months", "months and days are only valid for monthly recurrence")
	}
	if kind != RecurrenceExplicitDates && len(r.Dates) > 0 {
		v.fail(prefix+"dates", "only valid for explicit_dates recurrence")
	}
	if kind != RecurrenceIntervalRepeat && (r.EveryMinutes != 0 || r.StopBefore != nil) {
		v.fail(prefix+"every_minutes", "every_minutes and stop_before are only valid for interval_repeat recurrence")
	}
}

func validEveryMinutes(m int) bool {
	if m >= 1 && m < 60 {
		return true
	}
	return m >= 60 && m <= MinutesPerDay && m%60 == 0
}
