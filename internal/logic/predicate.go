package logic

import (
	"strings"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// EvaluatePredicate reports whether p holds for snap. It never errors:
// unknown keys, unsupported operators and missing snapshot fields all
// evaluate to false.
func EvaluatePredicate(p models.Predicate, snap models.ContextSnapshot) bool {
	spec, ok := models.LookupKey(p.Category, p.Key)
	if !ok || !spec.Supports(p.Operator) {
		return false
	}
	op := p.Operator.Canonical()
	key := strings.ToLower(p.Key)

	switch spec.Kind {
	case models.KindNumber:
		v := numericValue(key, snap)
		if v == nil || p.Operand.Number == nil {
			return false
		}
		return compareNumber(op, *v, *p.Operand.Number)
	case models.KindText, models.KindEnum:
		v, ok := textValue(key, snap)
		if !ok {
			return false
		}
		return matchText(op, key, v, p.Operand)
	case models.KindBool:
		v := boolValue(key, snap)
		if v == nil {
			return false
		}
		if op == models.OpIsTrue {
			return *v
		}
		return !*v
	case models.KindTimeOfDay:
		if snap.Timestamp.IsZero() || p.Operand.Window == nil {
			return false
		}
		return p.Operand.Window.Contains(models.TimeOfDayOf(snap.Timestamp))
	}
	return false
}

func compareNumber(op models.Operator, v, operand float64) bool {
	switch op {
	case models.OpGreaterThan:
		return v > operand
	case models.OpGreaterOrEqual:
		return v >= operand
	case models.OpLessThan:
		return v < operand
	case models.OpLessOrEqual:
		return v <= operand
	case models.OpEqual:
		return v == operand
	}
	return false
}

func matchText(op models.Operator, key, v string, operand models.Operand) bool {
	switch op {
	case models.OpContains:
		return operand.Text != "" && strings.Contains(strings.ToLower(v), strings.ToLower(operand.Text))
	case models.OpEqual:
		return sameValue(key, v, operand.Text)
	case models.OpIn:
		for _, allowed := range operand.Set {
			if sameValue(key, v, allowed) {
				return true
			}
		}
	}
	return false
}

// sameValue compares case-insensitively; weekday names compare by the day
// they denote so "Wed" matches "wednesday".
func sameValue(key, v, want string) bool {
	if key == models.KeyWeekday {
		a, errA := models.ParseWeekday(v)
		b, errB := models.ParseWeekday(want)
		return errA == nil && errB == nil && a == b
	}
	return strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(want))
}

func numericValue(key string, snap models.ContextSnapshot) *float64 {
	switch key {
	case models.KeyTemperature:
		if snap.Weather != nil {
			return snap.Weather.Temperature
		}
	case models.KeyHumidity:
		if snap.Weather != nil {
			return snap.Weather.Humidity
		}
	case models.KeyFootTraffic:
		if snap.Location != nil {
			return snap.Location.FootTraffic
		}
	case models.KeyCrowdDensity:
		if snap.Location != nil {
			return snap.Location.CrowdDensity
		}
	case models.KeyDiscount:
		if snap.Promotion != nil {
			return snap.Promotion.Discount
		}
	case models.KeyStockLevel:
		if snap.Promotion != nil {
			return snap.Promotion.StockLevel
		}
	}
	return nil
}

func textValue(key string, snap models.ContextSnapshot) (string, bool) {
	var v string
	switch key {
	case models.KeyWeather:
		if snap.Weather != nil {
			v = snap.Weather.Condition
		}
	case models.KeyWeekday:
		if !snap.Timestamp.IsZero() {
			v = snap.Timestamp.Weekday().String()
		}
	case models.KeyLocationType:
		if snap.Location != nil {
			v = snap.Location.Type
		}
	case models.KeyPromotion:
		if snap.Promotion != nil {
			v = snap.Promotion.Type
		}
	case models.KeyAgeBand:
		if snap.Audience != nil {
			v = snap.Audience.AgeBand
		}
	case models.KeyGender:
		if snap.Audience != nil {
			v = snap.Audience.Gender
		}
	case models.KeySpendSegment:
		if snap.Audience != nil {
			v = snap.Audience.SpendSegment
		}
	}
	return v, v != ""
}

func boolValue(key string, snap models.ContextSnapshot) *bool {
	switch key {
	case models.KeyWeekend:
		if snap.Timestamp.IsZero() {
			return nil
		}
		wd := snap.Timestamp.Weekday()
		weekend := wd == time.Saturday || wd == time.Sunday
		return &weekend
	case models.KeyHoliday:
		return snap.IsHoliday
	}
	return nil
}
