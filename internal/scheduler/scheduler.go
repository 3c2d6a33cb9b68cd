// Package scheduler runs the periodic reconciliation jobs that replace
// stream-driven state with authoritative snapshots.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"MarketLens/internal/collector"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
)

// ErrHoldingsDisabled is returned by RefreshHoldings before an account is configured.
var ErrHoldingsDisabled = errors.New("holdings refresh not enabled")

// BarStore is implemented by candle.Aggregator.
type BarStore interface {
	Keys() []model.SeriesKey
	ReplaceSeries(key model.SeriesKey, bars []model.OHLCV) bool
}

// HoldingsStore applies an authoritative holdings snapshot.
type HoldingsStore interface {
	ApplyHoldings(holdings []model.Holding)
}

// Options configures job cadence and fetch bounds.
type Options struct {
	BarSpec      string
	HoldingsSpec string
	BarCount     int
	Timeout      time.Duration
}

// Scheduler manages the bar and holdings refresh jobs.
type Scheduler struct {
	Cron     *cron.Cron
	Bars     collector.BarFetcher
	Holdings collector.HoldingsFetcher
	Series   BarStore
	Account  HoldingsStore
	Recorder recorder.Recorder
	Ctx      context.Context

	opts Options

	// gateMu orders holdings application against Disable so a fetch started
	// under a previous account never lands after a reset.
	gateMu  sync.Mutex
	enabled atomic.Bool
	gen     atomic.Uint64
}

// NewScheduler creates a new Scheduler. rec may be nil.
func NewScheduler(ctx context.Context, opts Options, bars collector.BarFetcher, holdings collector.HoldingsFetcher,
	series BarStore, account HoldingsStore, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.BarCount <= 0 {
		opts.BarCount = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Bars:     bars,
		Holdings: holdings,
		Series:   series,
		Account:  account,
		Recorder: rec,
		Ctx:      ctx,
		opts:     opts,
	}
}

// RegisterAll registers the bar and holdings refresh jobs.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.opts.BarSpec, func() { s.RefreshBars(s.Ctx) }); err != nil {
		return fmt.Errorf("register bar refresh: %w", err)
	}
	if _, err := s.Cron.AddFunc(s.opts.HoldingsSpec, func() {
		if err := s.RefreshHoldings(s.Ctx); err != nil && !errors.Is(err, ErrHoldingsDisabled) {
			log.Warnf("holdings refresh: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("register holdings refresh: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

// RefreshBars refreshes every registered series. Failures leave that series untouched.
func (s *Scheduler) RefreshBars(ctx context.Context) (refreshed, failed int) {
	for _, key := range s.Series.Keys() {
		if ctx.Err() != nil {
			break
		}
		if err := s.RefreshSeries(ctx, key); err != nil {
			failed++
			continue
		}
		refreshed++
	}
	if failed > 0 {
		log.Warnf("bar refresh: %d ok, %d failed", refreshed, failed)
	} else {
		log.Debugf("bar refresh: %d ok", refreshed)
	}
	return refreshed, failed
}

// RefreshSeries fetches one snapshot and replaces the series. A result for a
// series removed while the fetch was in flight is discarded.
func (s *Scheduler) RefreshSeries(ctx context.Context, key model.SeriesKey) error {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	bars, err := s.Bars.FetchBars(fctx, key.Symbol, key.Interval, s.opts.BarCount)
	evt := &recorder.RefreshEvent{Kind: recorder.KindBars, Key: key.String(), At: start}
	if err != nil {
		evt.Error = err.Error()
		evt.Duration = time.Since(start)
		s.record(evt)
		log.WithField("series", key.String()).Warnf("bar fetch failed: %v", err)
		return err
	}

	evt.OK = true
	evt.Count = len(bars)
	evt.Duration = time.Since(start)
	if !s.Series.ReplaceSeries(key, bars) {
		evt.Error = "discarded: series no longer registered"
		log.WithField("series", key.String()).Debug("discarding bars for removed series")
	}
	s.record(evt)
	return nil
}

// EnableHoldings opens the holdings gate.
func (s *Scheduler) EnableHoldings() {
	s.gateMu.Lock()
	s.enabled.Store(true)
	s.gateMu.Unlock()
}

// DisableHoldings closes the gate and invalidates fetches already in flight.
func (s *Scheduler) DisableHoldings() {
	s.gateMu.Lock()
	s.enabled.Store(false)
	s.gen.Add(1)
	s.gateMu.Unlock()
}

// HoldingsEnabled reports whether the gate is open.
func (s *Scheduler) HoldingsEnabled() bool { return s.enabled.Load() }

// RefreshHoldings fetches the account snapshot and applies it. On failure the
// previous holdings stay in place.
func (s *Scheduler) RefreshHoldings(ctx context.Context) error {
	if !s.enabled.Load() {
		return ErrHoldingsDisabled
	}
	gen := s.gen.Load()

	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	holdings, err := s.Holdings.FetchHoldings(fctx)
	evt := &recorder.RefreshEvent{Kind: recorder.KindHoldings, At: start}
	if err != nil {
		evt.Error = err.Error()
		evt.Duration = time.Since(start)
		s.record(evt)
		return fmt.Errorf("fetch holdings: %w", err)
	}
	evt.OK = true
	evt.Count = len(holdings)
	evt.Duration = time.Since(start)

	s.gateMu.Lock()
	if s.enabled.Load() && s.gen.Load() == gen {
		s.Account.ApplyHoldings(holdings)
	} else {
		evt.Error = "discarded: account reset during fetch"
	}
	s.gateMu.Unlock()

	s.record(evt)
	return nil
}

func (s *Scheduler) record(evt *recorder.RefreshEvent) {
	if err := s.Recorder.RecordRefresh(evt); err != nil {
		log.Errorf("record refresh: %v", err)
	}
}
