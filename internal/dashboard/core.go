// Package dashboard composes the stores and owns cross-component sequencing:
// chart changes, account setup and reconciliation results all flow through Core.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/candle"
	"MarketLens/internal/chart"
	"MarketLens/internal/collector"
	"MarketLens/internal/market"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
	"MarketLens/internal/scheduler"
	"MarketLens/internal/stream"
	"MarketLens/internal/subscription"
	"MarketLens/internal/valuation"
)

var ErrMissingKeys = errors.New("live trading requires access and secret keys")

// KeySetup selects the account mode and credentials.
type KeySetup struct {
	MockTrade bool
	AccessKey string
	SecretKey string
}

// Deps are the components Core sequences.
type Deps struct {
	Charts        *chart.Store
	Series        *candle.Aggregator
	Valuation     *valuation.Engine
	Subscriptions *subscription.Manager
	Scheduler     *scheduler.Scheduler
	Account       collector.AccountClient
	Markets       *market.Catalog
	Recorder      recorder.Recorder
	Timeout       time.Duration
}

// Core is the dashboard control surface.
type Core struct {
	d   Deps
	ctx context.Context

	chartsMu sync.Mutex // serializes chart mutations with their series registrations
	subsMu   sync.Mutex // reads charts and holdings and emits as one step

	accountMu  sync.Mutex
	configured bool
	mockTrade  bool

	fetches sync.WaitGroup
}

// New creates a Core and installs it as the scheduler's holdings sink. ctx bounds
// the immediate fetches started by chart changes.
func New(ctx context.Context, d Deps) *Core {
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	c := &Core{d: d, ctx: ctx}
	d.Scheduler.Account = c
	return c
}

// Bootstrap registers series for the initial charts, emits the first subscription
// set and starts their snapshot fetches.
func (c *Core) Bootstrap() {
	c.chartsMu.Lock()
	charts := c.d.Charts.List()
	for _, ch := range charts {
		c.d.Series.Register(ch.Key())
	}
	c.chartsMu.Unlock()

	c.syncSubscriptions()
	for _, key := range c.d.Series.Keys() {
		c.fetchAsync(key)
	}
}

// AddChart creates a chart; empty arguments use the configured new-chart defaults.
func (c *Core) AddChart(symbol string, interval model.Interval) (model.ChartConfig, error) {
	c.chartsMu.Lock()
	ch, err := c.d.Charts.Add(symbol, interval)
	if err != nil {
		c.chartsMu.Unlock()
		return model.ChartConfig{}, err
	}
	c.d.Series.Register(ch.Key())
	c.chartsMu.Unlock()

	log.WithField("chart", ch.ID).WithField("series", ch.Key().String()).Info("chart added")
	c.syncSubscriptions()
	c.fetchAsync(ch.Key())
	return ch, nil
}

// RemoveChart deletes a chart. Ticks stop reaching its series before this returns.
func (c *Core) RemoveChart(id string) error {
	c.chartsMu.Lock()
	ch, err := c.d.Charts.Remove(id)
	if err != nil {
		c.chartsMu.Unlock()
		return err
	}
	c.d.Series.Unregister(ch.Key())
	c.chartsMu.Unlock()

	log.WithField("chart", id).Info("chart removed")
	c.syncSubscriptions()
	return nil
}

// RetargetChart changes a chart's symbol and/or interval.
func (c *Core) RetargetChart(id, symbol string, interval model.Interval) (model.ChartConfig, error) {
	c.chartsMu.Lock()
	before, after, err := c.d.Charts.Retarget(id, symbol, interval)
	if err != nil {
		c.chartsMu.Unlock()
		return model.ChartConfig{}, err
	}
	moved := before.Key() != after.Key()
	if moved {
		c.d.Series.Register(after.Key())
		c.d.Series.Unregister(before.Key())
	}
	c.chartsMu.Unlock()

	if moved {
		log.WithField("chart", id).Infof("chart retargeted %s -> %s", before.Key(), after.Key())
		c.syncSubscriptions()
		c.fetchAsync(after.Key())
	}
	return after, nil
}

// Charts lists configured charts in insertion order.
func (c *Core) Charts() []model.ChartConfig { return c.d.Charts.List() }

// ChartSeries returns the series currently backing a chart.
func (c *Core) ChartSeries(id string) (candle.Snapshot, error) {
	ch, ok := c.d.Charts.Get(id)
	if !ok {
		return candle.Snapshot{}, fmt.Errorf("chart %s: %w", id, chart.ErrNotFound)
	}
	snap, ok := c.d.Series.Series(ch.Key())
	if !ok {
		return candle.Snapshot{Key: ch.Key(), State: candle.StateNotLoaded}, nil
	}
	return snap, nil
}

// Valuation returns the current derived account view.
func (c *Core) Valuation() model.Valuation { return c.d.Valuation.Valuation() }

// Subscriptions returns the last emitted subscription set.
func (c *Core) Subscriptions() []string { return c.d.Subscriptions.Current() }

// ConfigureAccount sends credentials to the backend, applies the returned account
// snapshot and opens the holdings refresh gate. On failure nothing changes.
// Switching between mock and live mode clears the previous account first.
func (c *Core) ConfigureAccount(ctx context.Context, setup KeySetup) error {
	if !setup.MockTrade && (setup.AccessKey == "" || setup.SecretKey == "") {
		return ErrMissingKeys
	}

	c.accountMu.Lock()
	defer c.accountMu.Unlock()

	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, c.d.Timeout)
	defer cancel()
	holdings, err := c.d.Account.SetKeys(fctx, collector.Credentials{
		MockTrade: setup.MockTrade,
		AccessKey: setup.AccessKey,
		SecretKey: setup.SecretKey,
	})

	evt := &recorder.RefreshEvent{Kind: recorder.KindAccount, At: start, Duration: time.Since(start)}
	if err != nil {
		evt.Error = err.Error()
		c.record(evt)
		return fmt.Errorf("configure account: %w", err)
	}
	evt.OK = true
	evt.Count = len(holdings)
	c.record(evt)

	if c.configured && c.mockTrade != setup.MockTrade {
		c.resetLocked()
	}
	c.configured = true
	c.mockTrade = setup.MockTrade
	c.d.Scheduler.EnableHoldings()
	c.ApplyHoldings(holdings)

	log.WithField("mock_trade", setup.MockTrade).WithField("assets", len(holdings)).Info("account configured")
	return nil
}

// ResetAccount closes the holdings gate and clears holdings and prices.
func (c *Core) ResetAccount() {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()
	c.resetLocked()
	log.Info("account reset")
}

func (c *Core) resetLocked() {
	c.d.Scheduler.DisableHoldings()
	c.configured = false
	if c.d.Valuation.Reset() {
		c.syncSubscriptions()
	}
}

// AccountConfigured reports whether holdings are being reconciled, and in which mode.
func (c *Core) AccountConfigured() (configured, mockTrade bool) {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()
	return c.configured, c.mockTrade
}

// RefreshHoldings runs the holdings reconciliation now.
func (c *Core) RefreshHoldings(ctx context.Context) error {
	return c.d.Scheduler.RefreshHoldings(ctx)
}

// RefreshBars runs the bar reconciliation now.
func (c *Core) RefreshBars(ctx context.Context) (refreshed, failed int) {
	return c.d.Scheduler.RefreshBars(ctx)
}

// ApplyHoldings replaces holdings and re-evaluates subscriptions when held
// assets changed.
func (c *Core) ApplyHoldings(holdings []model.Holding) {
	if c.d.Valuation.SetHoldings(holdings) {
		c.syncSubscriptions()
	}
}

// Markets lists quote markets matching query.
func (c *Core) Markets(ctx context.Context, query string) ([]model.Market, error) {
	all, err := c.d.Markets.List(ctx)
	if err != nil {
		return nil, err
	}
	return market.Filter(all, query), nil
}

// Wait blocks until immediate fetches started by chart changes have finished.
func (c *Core) Wait() { c.fetches.Wait() }

func (c *Core) syncSubscriptions() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	_, err := c.d.Subscriptions.Update(c.d.Charts.List(), c.d.Valuation.Holdings())
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrNotConnected):
		log.Debug("subscription queued until stream connects")
	default:
		log.Warnf("publish subscriptions: %v", err)
	}
}

func (c *Core) fetchAsync(key model.SeriesKey) {
	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		_ = c.d.Scheduler.RefreshSeries(c.ctx, key)
	}()
}

func (c *Core) record(evt *recorder.RefreshEvent) {
	if err := c.d.Recorder.RecordRefresh(evt); err != nil {
		log.Errorf("record account setup: %v", err)
	}
}
