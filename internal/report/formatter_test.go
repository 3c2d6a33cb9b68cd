package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"MarketLens/internal/candle"
	"MarketLens/internal/model"
	"MarketLens/internal/valuation"
)

func TestFormatValuation(t *testing.T) {
	v := valuation.Compute("KRW",
		[]model.Holding{
			{Currency: "KRW", Balance: 1500000},
			{Currency: "BTC", Balance: 1, AvgBuyPrice: 50000000},
		},
		map[string]float64{"KRW-BTC": 55000000},
	)
	out := FormatValuation("krw", v)

	assert.Contains(t, out, "BTC*")
	assert.Contains(t, out, "55,000,000")
	assert.Contains(t, out, "+5,000,000")
	assert.Contains(t, out, "+10.00%")
	assert.Contains(t, out, "TOTAL KRW")

	var krwLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "1,500,000") && !strings.Contains(line, "TOTAL") {
			krwLine = line
		}
	}
	assert.Contains(t, krwLine, " - ", "quote currency ROI renders as a dash")
}

func TestFormatSeries(t *testing.T) {
	key := model.SeriesKey{Symbol: "KRW-BTC", Interval: model.Minute60}
	assert.Equal(t, "KRW-BTC@minute60 loading", FormatSeries(candle.Snapshot{Key: key, State: candle.StateNotLoaded}))
	assert.Equal(t, "KRW-BTC@minute60 empty", FormatSeries(candle.Snapshot{Key: key, State: candle.StateEmpty}))

	snap := candle.Snapshot{Key: key, State: candle.StateReady, Bars: []model.OHLCV{
		{Time: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Close: 100},
		{Time: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Close: 1234.5},
	}}
	assert.Equal(t, "KRW-BTC@minute60 2 bars, last 2024-01-01 10:00 close 1,234.5, range 100..1,234.5, change +1134.50%",
		FormatSeries(snap))
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "1,234,568", Amount(1234567.8))
	assert.Equal(t, "+12", SignedAmount(12.2))
	assert.Equal(t, "-3", SignedAmount(-3))
	assert.Equal(t, "0", SignedAmount(0.2))
	assert.Equal(t, "-", ROI(nil))
	roi := -2.5
	assert.Equal(t, "-2.50%", ROI(&roi))
}
