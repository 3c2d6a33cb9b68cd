package collector

import (
	"context"
	"sync"
	"time"

	"MarketLens/internal/bucket"
	"MarketLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price    float64
	Bars     map[model.SeriesKey][]model.OHLCV
	Holdings []model.Holding
	Markets  []model.Market
	Err      error
	Now      func() time.Time

	mu       sync.Mutex
	barCalls map[model.SeriesKey]int
	holdings int
	lastKeys *Credentials
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, symbol string, interval model.Interval, count int) ([]model.OHLCV, error) {
	key := model.SeriesKey{Symbol: symbol, Interval: interval}
	m.mu.Lock()
	if m.barCalls == nil {
		m.barCalls = make(map[model.SeriesKey]int)
	}
	m.barCalls[key]++
	err := m.Err
	bars, ok := m.Bars[key]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		out := make([]model.OHLCV, len(bars))
		copy(out, bars)
		return out, nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(m.Price, interval, count, now()), nil
}

func (m *MockFetcher) FetchHoldings(_ context.Context) ([]model.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.Holding, len(m.Holdings))
	copy(out, m.Holdings)
	return out, nil
}

func (m *MockFetcher) SetKeys(ctx context.Context, creds Credentials) ([]model.Holding, error) {
	m.mu.Lock()
	c := creds
	m.lastKeys = &c
	m.mu.Unlock()
	return m.FetchHoldings(ctx)
}

func (m *MockFetcher) FetchMarkets(_ context.Context) ([]model.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.Market, len(m.Markets))
	copy(out, m.Markets)
	return out, nil
}

// SetErr makes every subsequent call fail with err (nil restores success).
func (m *MockFetcher) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

// SetHoldings replaces the account snapshot served by later calls.
func (m *MockFetcher) SetHoldings(h []model.Holding) {
	m.mu.Lock()
	m.Holdings = h
	m.mu.Unlock()
}

// BarCalls reports how many bar fetches were made for key.
func (m *MockFetcher) BarCalls(key model.SeriesKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.barCalls[key]
}

// HoldingsCalls reports how many holdings fetches were made, including SetKeys.
func (m *MockFetcher) HoldingsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdings
}

// LastCredentials returns the credentials from the most recent SetKeys call.
func (m *MockFetcher) LastCredentials() (Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastKeys == nil {
		return Credentials{}, false
	}
	return *m.lastKeys, true
}

// generateMockBars builds count bucket-aligned bars ending at the bucket containing now.
func generateMockBars(basePrice float64, interval model.Interval, count int, now time.Time) []model.OHLCV {
	width := bucket.Width(interval)
	if width == 0 || count <= 0 {
		return []model.OHLCV{}
	}
	last := bucket.Floor(now, interval, time.UTC)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   last.Add(-time.Duration(count-1-i) * width),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
