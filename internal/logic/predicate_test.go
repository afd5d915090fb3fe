package logic

import (
	"testing"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePredicate(t *testing.T) {
	wednesday := at(2025, time.January, 8, 14, 0)
	full := models.ContextSnapshot{
		Timestamp: wednesday,
		Weather:   &models.WeatherReading{Temperature: models.Float(32), Humidity: models.Float(75), Condition: "Light Rain Showers"},
		Location:  &models.LocationState{Type: "Mall", FootTraffic: models.Float(120), CrowdDensity: models.Float(0.4)},
		Promotion: &models.PromotionState{Type: "bogo", Discount: models.Float(20), StockLevel: models.Float(5)},
		Audience:  &models.AudienceProfile{AgeBand: "18-24", Gender: "f", SpendSegment: "premium"},
		IsHoliday: models.Bool(false),
	}
	empty := models.ContextSnapshot{}

	tests := []struct {
		name string
		p    models.Predicate
		snap models.ContextSnapshot
		want bool
	}{
		{"temperature above", numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpGreaterThan, 30), full, true},
		{"temperature not above", numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpGreaterThan, 32), full, false},
		{"temperature ge", numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpGreaterOrEqual, 32), full, true},
		{"humidity alias above", numPredicate(models.CategoryEnvironmental, models.KeyHumidity, models.OpAbove, 70), full, true},
		{"humidity alias below", numPredicate(models.CategoryEnvironmental, models.KeyHumidity, models.OpBelow, 70), full, false},
		{"no weather fails closed", numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpGreaterThan, 30), empty, false},
		{"no weather fails closed for less_than", numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpLessThan, 100), empty, false},
		{"weather text contains case-insensitive", models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyWeather, Operator: models.OpContains, Operand: models.Operand{Text: "rain"}}, full, true},
		{"weather text missing", models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyWeather, Operator: models.OpContains, Operand: models.Operand{Text: "rain"}}, empty, false},
		{"weekday in set", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyWeekday, Operator: models.OpIn, Operand: models.Operand{Set: []string{"Mon", "wednesday"}}}, full, true},
		{"weekday not in set", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyWeekday, Operator: models.OpIn, Operand: models.Operand{Set: []string{"sat"}}}, full, false},
		{"weekend false on wednesday", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyWeekend, Operator: models.OpIsTrue}, full, false},
		{"weekend is_false on wednesday", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyWeekend, Operator: models.OpIsFalse}, full, true},
		{"holiday is_false", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyHoliday, Operator: models.OpIsFalse}, full, true},
		{"holiday absent is_true", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyHoliday, Operator: models.OpIsTrue}, empty, false},
		{"holiday absent is_false", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyHoliday, Operator: models.OpIsFalse}, empty, false},
		{"time of day window", models.Predicate{Category: models.CategoryTemporal, Key: models.KeyTimeOfDay, Operator: models.OpBetween, Operand: models.Operand{Window: &models.TimeWindow{Start: models.NewTimeOfDay(12, 0), End: models.NewTimeOfDay(15, 0)}}}, full, true},
		{"location type enum", models.Predicate{Category: models.CategoryLocation, Key: models.KeyLocationType, Operator: models.OpIn, Operand: models.Operand{Set: []string{"airport", "mall"}}}, full, true},
		{"crowd density", numPredicate(models.CategoryLocation, models.KeyCrowdDensity, models.OpLessOrEqual, 0.5), full, true},
		{"stock level low", numPredicate(models.CategoryPromotional, models.KeyStockLevel, models.OpLessThan, 10), full, true},
		{"promotion type equal", models.Predicate{Category: models.CategoryPromotional, Key: models.KeyPromotion, Operator: models.OpEqual, Operand: models.Operand{Text: "BOGO"}}, full, true},
		{"spend segment", models.Predicate{Category: models.CategoryDemographic, Key: models.KeySpendSegment, Operator: models.OpIn, Operand: models.Operand{Set: []string{"premium"}}}, full, true},
		{"unknown category", models.Predicate{Category: "astrology", Key: "moon", Operator: models.OpEqual, Operand: models.Operand{Text: "full"}}, full, false},
		{"unknown key", numPredicate(models.CategoryEnvironmental, "pollen", models.OpGreaterThan, 0), full, false},
		{"unsupported operator", models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyTemperature, Operator: models.OpContains, Operand: models.Operand{Text: "3"}}, full, false},
		{"numeric without operand", models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyTemperature, Operator: models.OpGreaterThan}, full, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluatePredicate(tt.p, tt.snap))
		})
	}
}

func TestMatchesConditions(t *testing.T) {
	c := models.Campaign{Conditions: []models.Predicate{
		numPredicate(models.CategoryEnvironmental, models.KeyTemperature, models.OpGreaterThan, 30),
		numPredicate(models.CategoryEnvironmental, models.KeyHumidity, models.OpGreaterThan, 70),
	}}
	hotHumid := models.ContextSnapshot{Weather: &models.WeatherReading{Temperature: models.Float(32), Humidity: models.Float(75)}}
	hotDry := models.ContextSnapshot{Weather: &models.WeatherReading{Temperature: models.Float(32), Humidity: models.Float(20)}}

	assert.True(t, MatchesConditions(c, hotHumid))
	assert.False(t, MatchesConditions(c, hotDry))
	assert.False(t, MatchesConditions(models.Campaign{}, hotHumid))

	matched, ok := MatchedConditions(c, hotHumid)
	assert.True(t, ok)
	assert.Equal(t, []string{
		"environmental.temperature greater_than 30",
		"environmental.humidity greater_than 70",
	}, matched)
}
