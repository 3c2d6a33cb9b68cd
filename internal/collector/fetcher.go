package collector

import (
	"context"

	"MarketLens/internal/model"
)

// BarFetcher fetches an authoritative, oldest-first bar snapshot.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.OHLCV, error)
}

// HoldingsFetcher fetches the authoritative account snapshot.
type HoldingsFetcher interface {
	FetchHoldings(ctx context.Context) ([]model.Holding, error)
}

// AccountClient configures backend credentials and trading mode.
type AccountClient interface {
	SetKeys(ctx context.Context, creds Credentials) ([]model.Holding, error)
}

// MarketFetcher lists tradable markets.
type MarketFetcher interface {
	FetchMarkets(ctx context.Context) ([]model.Market, error)
}

// Fetcher is everything the dashboard needs from the backend.
type Fetcher interface {
	BarFetcher
	HoldingsFetcher
	AccountClient
	MarketFetcher
	Name() string
}

// Credentials selects mock or live trading. Keys are only sent in live mode.
type Credentials struct {
	MockTrade bool
	AccessKey string
	SecretKey string
}
