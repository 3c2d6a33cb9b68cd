package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/model"
)

func barsFromCloses(closes ...float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: time.Unix(int64(i)*60, 0), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestCalculateSMA(t *testing.T) {
	tests := []struct {
		name    string
		prices  []float64
		period  int
		want    float64
		wantErr bool
	}{
		{"exact", []float64{1, 2, 3}, 3, 2, false},
		{"uses tail", []float64{100, 1, 2, 3}, 3, 2, false},
		{"too short", []float64{1, 2}, 3, 0, true},
		{"bad period", []float64{1}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSMA(tt.prices, tt.period)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRangeIncludesTickedClose(t *testing.T) {
	bars := barsFromCloses(10, 12)
	bars[1].Close = 15 // moved by a tick after the snapshot
	high, low, err := Range(bars)
	require.NoError(t, err)
	assert.Equal(t, 15.0, high)
	assert.Equal(t, 10.0, low)

	_, _, err = Range(nil)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestPosition(t *testing.T) {
	p, err := Position(15, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	p, _ = Position(30, 20, 10)
	assert.Equal(t, 1.0, p)
	p, _ = Position(7, 7, 7)
	assert.Equal(t, 0.5, p)
	_, err = Position(1, 1, 2)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(barsFromCloses(100, 90, 110))
	require.NoError(t, err)
	assert.Equal(t, 110.0, s.High)
	assert.Equal(t, 90.0, s.Low)
	assert.Equal(t, 1.0, s.Position)
	assert.InDelta(t, 10.0, s.Change, 1e-9)
	assert.False(t, s.HasSMA)

	closes := make([]float64, SMAPeriod)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	s, err = Summarize(barsFromCloses(closes...))
	require.NoError(t, err)
	assert.True(t, s.HasSMA)
	assert.InDelta(t, 10.5, s.SMA, 1e-9)

	_, err = Summarize(nil)
	assert.ErrorIs(t, err, ErrNoBars)
}
