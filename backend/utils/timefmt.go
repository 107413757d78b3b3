package utils

import (
	"time"
	_ "time/tzdata"
)

// DisplayTimeLayout is how timestamps are shown to users.
const DisplayTimeLayout = "15:04 02/01/2006"

// LocalTime is a timestamp rendered in a viewer's timezone.
type LocalTime struct {
	Value    string `json:"value"`
	TimeZone string `json:"timeZone"`
}

// InZone formats t in the named zone, falling back to UTC for unknown names.
func InZone(t time.Time, zone string) LocalTime {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc, zone = time.UTC, "UTC"
	}
	return LocalTime{Value: t.In(loc).Format(DisplayTimeLayout), TimeZone: zone}
}

// InZonePtr is InZone for optional timestamps.
func InZonePtr(t *time.Time, zone string) *LocalTime {
	if t == nil {
		return nil
	}
	lt := InZone(*t, zone)
	return &lt
}
