package models

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Location is a physical playback site.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"location_type,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
	Active   bool   `json:"active"`
}

// zones caches resolved time zones by IANA name. Unknown names map to UTC.
var zones sync.Map

// Zone resolves the location's IANA time zone, falling back to UTC when it
// is empty or unknown. Each name is loaded from tzdata once per process.
func (l Location) Zone() *time.Location {
	if l.TimeZone == "" {
		return time.UTC
	}
	if tz, ok := zones.Load(l.TimeZone); ok {
		return tz.(*time.Location)
	}
	tz, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		zap.L().Warn("unknown location time zone, using UTC",
			zap.String("location_id", l.ID),
			zap.String("time_zone", l.TimeZone),
			zap.Error(err))
		tz = time.UTC
	}
	actual, _ := zones.LoadOrStore(l.TimeZone, tz)
	return actual.(*time.Location)
}
