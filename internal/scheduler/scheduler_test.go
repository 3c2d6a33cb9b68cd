package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/candle"
	"MarketLens/internal/collector"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
)

type memRecorder struct {
	mu     sync.Mutex
	events []recorder.RefreshEvent
}

func (m *memRecorder) RecordRefresh(evt *recorder.RefreshEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *evt)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func (m *memRecorder) last() recorder.RefreshEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

type holdingsSink struct {
	mu      sync.Mutex
	applied [][]model.Holding
}

func (h *holdingsSink) ApplyHoldings(holdings []model.Holding) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied = append(h.applied, holdings)
}

func (h *holdingsSink) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.applied)
}

var btcHour = model.SeriesKey{Symbol: "KRW-BTC", Interval: model.Minute60}

func newTestScheduler(f *collector.MockFetcher, agg *candle.Aggregator, sink *holdingsSink, rec *memRecorder) *Scheduler {
	return NewScheduler(context.Background(), Options{
		BarSpec:      "@every 1m",
		HoldingsSpec: "@every 10s",
		BarCount:     3,
		Timeout:      time.Second,
	}, f, f, agg, sink, rec)
}

func TestRefreshBarsReplacesEverySeries(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	f := &collector.MockFetcher{Price: 100, Now: func() time.Time { return now }}
	agg := candle.NewAggregator(candle.Options{}, nil)
	agg.Register(btcHour)
	ethDay := model.SeriesKey{Symbol: "KRW-ETH", Interval: model.Day}
	agg.Register(ethDay)
	rec := &memRecorder{}

	ok, failed := newTestScheduler(f, agg, &holdingsSink{}, rec).RefreshBars(context.Background())
	assert.Equal(t, 2, ok)
	assert.Zero(t, failed)

	snap, found := agg.Series(btcHour)
	require.True(t, found)
	assert.Equal(t, candle.StateReady, snap.State)
	assert.Len(t, snap.Bars, 3)
	assert.Equal(t, 1, f.BarCalls(ethDay))
	assert.Len(t, rec.events, 2)
	assert.True(t, rec.last().OK)
}

func TestFailedBarRefreshLeavesSeriesIntact(t *testing.T) {
	bars := []model.OHLCV{{Time: time.Unix(3600, 0).UTC(), Close: 100}}
	f := &collector.MockFetcher{Bars: map[model.SeriesKey][]model.OHLCV{btcHour: bars}}
	agg := candle.NewAggregator(candle.Options{}, nil)
	agg.Register(btcHour)
	rec := &memRecorder{}
	s := newTestScheduler(f, agg, &holdingsSink{}, rec)

	require.NoError(t, s.RefreshSeries(context.Background(), btcHour))
	f.SetErr(errors.New("timeout"))
	assert.Error(t, s.RefreshSeries(context.Background(), btcHour))

	snap, _ := agg.Series(btcHour)
	assert.Equal(t, bars, snap.Bars)
	assert.False(t, rec.last().OK)
	assert.Equal(t, "timeout", rec.last().Error)
}

func TestRefreshForRemovedSeriesIsDiscarded(t *testing.T) {
	f := &collector.MockFetcher{Price: 1}
	agg := candle.NewAggregator(candle.Options{}, nil)
	rec := &memRecorder{}
	s := newTestScheduler(f, agg, &holdingsSink{}, rec)

	require.NoError(t, s.RefreshSeries(context.Background(), btcHour))
	_, found := agg.Series(btcHour)
	assert.False(t, found)
	assert.Contains(t, rec.last().Error, "discarded")
}

func TestHoldingsGate(t *testing.T) {
	f := &collector.MockFetcher{Holdings: []model.Holding{{Currency: "KRW", Balance: 1}}}
	sink := &holdingsSink{}
	s := newTestScheduler(f, candle.NewAggregator(candle.Options{}, nil), sink, &memRecorder{})

	assert.ErrorIs(t, s.RefreshHoldings(context.Background()), ErrHoldingsDisabled)
	assert.Zero(t, f.HoldingsCalls())

	s.EnableHoldings()
	require.NoError(t, s.RefreshHoldings(context.Background()))
	assert.Equal(t, 1, sink.count())

	s.DisableHoldings()
	assert.False(t, s.HoldingsEnabled())
	assert.ErrorIs(t, s.RefreshHoldings(context.Background()), ErrHoldingsDisabled)
	assert.Equal(t, 1, sink.count())
}

func TestFailedHoldingsRefreshAppliesNothing(t *testing.T) {
	f := &collector.MockFetcher{Holdings: []model.Holding{
		{Currency: "KRW", Balance: 1}, {Currency: "BTC", Balance: 1}, {Currency: "ETH", Balance: 2},
	}}
	sink := &holdingsSink{}
	rec := &memRecorder{}
	s := newTestScheduler(f, candle.NewAggregator(candle.Options{}, nil), sink, rec)
	s.EnableHoldings()

	require.NoError(t, s.RefreshHoldings(context.Background()))
	f.SetErr(errors.New("502"))
	assert.Error(t, s.RefreshHoldings(context.Background()))

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, recorder.KindHoldings, rec.last().Kind)
	assert.False(t, rec.last().OK)
}

type blockingHoldings struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingHoldings) FetchHoldings(ctx context.Context) ([]model.Holding, error) {
	close(b.started)
	<-b.release
	return []model.Holding{{Currency: "BTC", Balance: 1}}, nil
}

func TestHoldingsFetchInFlightDuringResetIsDiscarded(t *testing.T) {
	b := &blockingHoldings{started: make(chan struct{}), release: make(chan struct{})}
	sink := &holdingsSink{}
	s := NewScheduler(context.Background(), Options{Timeout: time.Second}, &collector.MockFetcher{}, b,
		candle.NewAggregator(candle.Options{}, nil), sink, nil)
	s.EnableHoldings()

	done := make(chan error, 1)
	go func() { done <- s.RefreshHoldings(context.Background()) }()
	<-b.started
	s.DisableHoldings()
	s.EnableHoldings()
	close(b.release)

	require.NoError(t, <-done)
	assert.Zero(t, sink.count())
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), Options{BarSpec: "whenever", HoldingsSpec: "@every 10s"},
		&collector.MockFetcher{}, &collector.MockFetcher{}, candle.NewAggregator(candle.Options{}, nil), &holdingsSink{}, nil)
	assert.Error(t, s.RegisterAll())

	s = newTestScheduler(&collector.MockFetcher{}, candle.NewAggregator(candle.Options{}, nil), &holdingsSink{}, &memRecorder{})
	require.NoError(t, s.RegisterAll())
	assert.Len(t, s.Cron.Entries(), 2)
}
