package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/model"
)

func TestFloor_Intervals(t *testing.T) {
	ts := time.Date(2024, 11, 11, 13, 47, 31, 500, time.UTC)
	tests := []struct {
		interval model.Interval
		want     time.Time
	}{
		{model.Minute1, time.Date(2024, 11, 11, 13, 47, 0, 0, time.UTC)},
		{model.Minute30, time.Date(2024, 11, 11, 13, 30, 0, 0, time.UTC)},
		{model.Minute60, time.Date(2024, 11, 11, 13, 0, 0, 0, time.UTC)},
		{model.Minute240, time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC)},
		{model.Day, time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := Floor(ts, tt.interval, time.UTC)
		assert.True(t, tt.want.Equal(got), "%s: expected %v, got %v", tt.interval, tt.want, got)
	}
}

func TestFloor_UnknownIntervalPassesThrough(t *testing.T) {
	ts := time.Date(2024, 11, 11, 13, 47, 31, 0, time.UTC)
	assert.True(t, ts.Equal(Floor(ts, model.Interval("week"), time.UTC)))
}

func TestFloor_IdempotentAndNeverForward(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, loc := range []*time.Location{time.UTC, seoul} {
		for step := 0; step < 2000; step++ {
			ts := start.Add(time.Duration(step) * 7919 * time.Second)
			for _, iv := range model.Intervals {
				f := Floor(ts, iv, loc)
				assert.False(t, f.After(ts), "%s %v: floor %v after t", iv, ts, f)
				assert.True(t, f.Equal(Floor(f, iv, loc)), "%s %v: not idempotent", iv, ts)
				assert.Less(t, ts.Sub(f), Width(iv)+time.Nanosecond)
			}
		}
	}
}

func TestFloor_ReferenceZoneAlignsDay(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 20:00 UTC is 05:00 next day in Seoul.
	ts := time.Date(2024, 11, 11, 20, 0, 0, 0, time.UTC)
	assert.True(t, time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC).Equal(Floor(ts, model.Day, time.UTC)))
	assert.True(t, time.Date(2024, 11, 12, 0, 0, 0, 0, seoul).Equal(Floor(ts, model.Day, seoul)))
	assert.True(t, time.Date(2024, 11, 12, 4, 0, 0, 0, seoul).Equal(Floor(ts, model.Minute240, seoul)))
}

func TestFloor_NilLocationIsUTC(t *testing.T) {
	ts := time.Date(2024, 11, 11, 13, 47, 0, 0, time.UTC)
	assert.True(t, Floor(ts, model.Minute60, time.UTC).Equal(Floor(ts, model.Minute60, nil)))
}
