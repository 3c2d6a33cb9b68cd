package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/bucket"
	"MarketLens/internal/model"
)

func TestMockGeneratesAlignedBars(t *testing.T) {
	now := time.Date(2024, 5, 1, 13, 47, 10, 0, time.UTC)
	m := &MockFetcher{Price: 100, Now: func() time.Time { return now }}

	bars, err := m.FetchBars(context.Background(), "KRW-BTC", model.Minute30, 5)
	require.NoError(t, err)
	require.Len(t, bars, 5)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC), bars[4].Time)
	for i, b := range bars {
		assert.Equal(t, bucket.Floor(b.Time, model.Minute30, time.UTC), b.Time)
		if i > 0 {
			assert.Equal(t, 30*time.Minute, b.Time.Sub(bars[i-1].Time))
		}
	}
	assert.Equal(t, 1, m.BarCalls(model.SeriesKey{Symbol: "KRW-BTC", Interval: model.Minute30}))
}

func TestMockFixedDataAndErrors(t *testing.T) {
	key := model.SeriesKey{Symbol: "KRW-ETH", Interval: model.Day}
	fixed := []model.OHLCV{{Time: time.Unix(0, 0).UTC(), Close: 1}}
	m := &MockFetcher{
		Bars:     map[model.SeriesKey][]model.OHLCV{key: fixed},
		Holdings: []model.Holding{{Currency: "KRW", Balance: 10}},
	}

	bars, err := m.FetchBars(context.Background(), key.Symbol, key.Interval, 200)
	require.NoError(t, err)
	assert.Equal(t, fixed, bars)

	h, err := m.SetKeys(context.Background(), Credentials{MockTrade: true})
	require.NoError(t, err)
	assert.Len(t, h, 1)
	creds, ok := m.LastCredentials()
	require.True(t, ok)
	assert.True(t, creds.MockTrade)

	m.SetErr(errors.New("down"))
	_, err = m.FetchHoldings(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, m.HoldingsCalls())
}
