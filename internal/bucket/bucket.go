// Package bucket maps trade timestamps onto bar bucket starts.
package bucket

import (
	"time"

	"MarketLens/internal/model"
)

// Floor returns the start of the bucket containing t for the given interval.
// Truncation happens on the wall clock of loc, so daily and 4-hour buckets follow
// the exchange's trading day rather than the caller's zone. A nil loc means UTC.
// Unknown intervals return t unchanged.
func Floor(t time.Time, interval model.Interval, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	y, mo, d := lt.Date()
	h, mi := lt.Hour(), lt.Minute()

	switch interval {
	case model.Minute1:
		return time.Date(y, mo, d, h, mi, 0, 0, loc)
	case model.Minute30:
		return time.Date(y, mo, d, h, mi-mi%30, 0, 0, loc)
	case model.Minute60:
		return time.Date(y, mo, d, h, 0, 0, 0, loc)
	case model.Minute240:
		return time.Date(y, mo, d, h-h%4, 0, 0, 0, loc)
	case model.Day:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	default:
		return t
	}
}

// Width returns the nominal bucket width, or 0 for unknown intervals.
func Width(interval model.Interval) time.Duration {
	switch interval {
	case model.Minute1:
		return time.Minute
	case model.Minute30:
		return 30 * time.Minute
	case model.Minute60:
		return time.Hour
	case model.Minute240:
		return 4 * time.Hour
	case model.Day:
		return 24 * time.Hour
	default:
		return 0
	}
}
