package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"MarketLens/internal/model"
)

// ErrStatus is wrapped by every non-2xx response error.
var ErrStatus = errors.New("unexpected status")

// BackendFetcher implements Fetcher against the dashboard backend REST API.
type BackendFetcher struct {
	BaseURL string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewBackendFetcher creates a fetcher with optional proxy support. rps <= 0 disables limiting.
func NewBackendFetcher(baseURL, proxyURL string, timeout time.Duration, rps float64) *BackendFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))
	}
	return &BackendFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Limiter: limiter,
	}
}

func (f *BackendFetcher) Name() string { return "backend" }

func (f *BackendFetcher) FetchBars(ctx context.Context, symbol string, interval model.Interval, count int) ([]model.OHLCV, error) {
	q := url.Values{}
	q.Set("interval", string(interval))
	q.Set("count", strconv.Itoa(count))
	endpoint := fmt.Sprintf("%s/api/ohlcv/%s?%s", f.BaseURL, url.PathEscape(symbol), q.Encode())

	body, err := f.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s %s: %w", symbol, interval, err)
	}
	var raw []bar
	if err := decodeJSON(body, &raw); err != nil {
		return nil, fmt.Errorf("fetch bars %s %s: %w", symbol, interval, err)
	}
	bars := make([]model.OHLCV, len(raw))
	for i, b := range raw {
		bars[i] = model.OHLCV{
			Time:   time.Unix(b.Time, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	// Ensure chronological order
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (f *BackendFetcher) FetchHoldings(ctx context.Context) ([]model.Holding, error) {
	body, err := f.do(ctx, http.MethodGet, f.BaseURL+"/api/account-summary", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch holdings: %w", err)
	}
	var summary accountSummary
	if err := decodeJSON(body, &summary); err != nil {
		return nil, fmt.Errorf("fetch holdings: %w", err)
	}
	return toHoldings(summary.AccountSummary), nil
}

func (f *BackendFetcher) SetKeys(ctx context.Context, creds Credentials) ([]model.Holding, error) {
	req := setKeysRequest{IsMockTrade: creds.MockTrade}
	if !creds.MockTrade {
		req.AccessKey = creds.AccessKey
		req.SecretKey = creds.SecretKey
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode keys: %w", err)
	}
	body, err := f.do(ctx, http.MethodPost, f.BaseURL+"/api/set-keys", payload)
	if err != nil {
		return nil, fmt.Errorf("set keys: %w", err)
	}
	var summary accountSummary
	if err := decodeJSON(body, &summary); err != nil {
		return nil, fmt.Errorf("set keys: %w", err)
	}
	return toHoldings(summary.AccountSummary), nil
}

func (f *BackendFetcher) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	body, err := f.do(ctx, http.MethodGet, f.BaseURL+"/api/markets", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	var markets []model.Market
	if err := decodeJSON(body, &markets); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	return markets, nil
}

func (f *BackendFetcher) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d, body: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
