package models

import "time"

// ContextSnapshot is the externally supplied state of one location at one
// instant. Nil sections mean the reading is unavailable; predicates that need
// them evaluate to false.
type ContextSnapshot struct {
	LocationID string           `json:"location_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Weather    *WeatherReading  `json:"weather,omitempty"`
	Location   *LocationState   `json:"location,omitempty"`
	Promotion  *PromotionState  `json:"promotion,omitempty"`
	Audience   *AudienceProfile `json:"audience,omitempty"`
	IsHoliday  *bool            `json:"is_holiday,omitempty"`
}

// WeatherReading holds normalized weather values. Temperature is in degrees
// Celsius and Humidity in percent.
type WeatherReading struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Condition   string   `json:"condition,omitempty"`
}

// LocationState describes the venue right now.
type LocationState struct {
	Type         string   `json:"type,omitempty"`
	FootTraffic  *float64 `json:"foot_traffic,omitempty"`
	CrowdDensity *float64 `json:"crowd_density,omitempty"`
}

// PromotionState is the promotion currently running at the location.
type PromotionState struct {
	Type       string   `json:"type,omitempty"`
	Discount   *float64 `json:"discount,omitempty"`
	StockLevel *float64 `json:"stock_level,omitempty"`
}

// AudienceProfile is the demographic target in effect.
type AudienceProfile struct {
	AgeBand      string `json:"age_band,omitempty"`
	Gender       string `json:"gender,omitempty"`
	SpendSegment string `json:"spend_segment,omitempty"`
}

// Float returns a pointer to v. It keeps snapshot literals short.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
