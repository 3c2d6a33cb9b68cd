// Package candle owns every OHLC series backing a chart and merges authoritative
// snapshots and live ticks into them.
//
// A snapshot replaces a series wholesale. A tick only ever touches the newest bar:
// it overwrites that bar's close when the tick falls in the same bucket and is
// otherwise dropped, so committed bars never change after the fact. Snapshot
// replacement and tick application serialize on the same lock, so a tick lands
// strictly before or strictly after a replacement.
package candle

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/bucket"
	"MarketLens/internal/events"
	"MarketLens/internal/model"
)

// State describes what a caller should render for a series.
type State int

const (
	StateNotLoaded State = iota // registered, no snapshot yet
	StateEmpty                  // snapshot arrived with zero bars
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "NOT_LOADED"
	case StateEmpty:
		return "EMPTY"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Options tune tick application. The zero value reproduces the conservative
// behavior: ticks never open bars and arrival order wins.
type Options struct {
	// Location is the zone buckets are aligned in. Nil means UTC.
	Location *time.Location
	// OpenNewBuckets opens a bar from the first tick of a bucket newer than the last bar.
	OpenNewBuckets bool
	// RejectLateTicks ignores ticks older than the newest tick already applied to the open bar.
	RejectLateTicks bool
}

// Snapshot is a read-only copy of one series.
type Snapshot struct {
	Key   model.SeriesKey
	State State
	Bars  []model.OHLCV
}

// Last returns the most recent bar.
func (s Snapshot) Last() (model.OHLCV, bool) {
	if len(s.Bars) == 0 {
		return model.OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

type series struct {
	refs     int
	loaded   bool
	bars     []model.OHLCV
	lastTick time.Time
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu     sync.Mutex
	opts   Options
	series map[model.SeriesKey]*series
	hub    *events.Hub[events.SeriesChanged]
}

// NewAggregator creates an Aggregator. hub may be nil.
func NewAggregator(opts Options, hub *events.Hub[events.SeriesChanged]) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Aggregator{
		opts:   opts,
		series: make(map[model.SeriesKey]*series),
		hub:    hub,
	}
}

// Register adds a reference to the series for key, creating it in the not-loaded
// state if needed. It reports whether the series was created.
func (a *Aggregator) Register(key model.SeriesKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.series[key]; ok {
		s.refs++
		return false
	}
	a.series[key] = &series{refs: 1}
	log.WithField("series", key.String()).Debug("series registered")
	return true
}

// Unregister drops a reference and removes the series when none remain.
// It reports whether the series was removed.
func (a *Aggregator) Unregister(key model.SeriesKey) bool {
	a.mu.Lock()
	s, ok := a.series[key]
	if !ok {
		a.mu.Unlock()
		return false
	}
	s.refs--
	if s.refs > 0 {
		a.mu.Unlock()
		return false
	}
	delete(a.series, key)
	a.mu.Unlock()

	log.WithField("series", key.String()).Debug("series dropped")
	a.notify(key, events.SeriesDropped)
	return true
}

// Keys returns every registered series, sorted.
func (a *Aggregator) Keys() []model.SeriesKey {
	a.mu.Lock()
	keys := make([]model.SeriesKey, 0, len(a.series))
	for k := range a.series {
		keys = append(keys, k)
	}
	a.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Interval < keys[j].Interval
	})
	return keys
}

// Interested reports whether any series is registered for symbol.
func (a *Aggregator) Interested(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.series {
		if k.Symbol == symbol {
			return true
		}
	}
	return false
}

// ReplaceSeries installs an authoritative snapshot. Bars must be ordered oldest
// first and bucket aligned. A zero-length snapshot leaves the series explicitly
// empty. It returns false, discarding bars, when the series is no longer registered.
func (a *Aggregator) ReplaceSeries(key model.SeriesKey, bars []model.OHLCV) bool {
	cp := make([]model.OHLCV, len(bars))
	copy(cp, bars)

	a.mu.Lock()
	s, ok := a.series[key]
	if !ok {
		a.mu.Unlock()
		return false
	}
	s.bars = cp
	s.loaded = true
	s.lastTick = time.Time{}
	a.mu.Unlock()

	a.notify(key, events.SeriesReplaced)
	return true
}

// ApplyTick merges a tick into every series registered for its symbol and
// returns how many series changed.
func (a *Aggregator) ApplyTick(tick model.Tick) int {
	var changed []model.SeriesKey

	a.mu.Lock()
	for key, s := range a.series {
		if key.Symbol != tick.Symbol {
			continue
		}
		if a.applyLocked(key, s, tick) {
			changed = append(changed, key)
		}
	}
	a.mu.Unlock()

	for _, key := range changed {
		a.notify(key, events.SeriesTicked)
	}
	return len(changed)
}

func (a *Aggregator) applyLocked(key model.SeriesKey, s *series, tick model.Tick) bool {
	if !s.loaded {
		return false
	}
	start := bucket.Floor(tick.Time, key.Interval, a.opts.Location)

	if len(s.bars) == 0 {
		if !a.opts.OpenNewBuckets {
			return false
		}
		s.bars = append(s.bars, openBar(start, tick.Price))
		s.lastTick = tick.Time
		return true
	}

	last := &s.bars[len(s.bars)-1]
	switch {
	case start.Equal(last.Time):
		if a.opts.RejectLateTicks && tick.Time.Before(s.lastTick) {
			return false
		}
		last.Close = tick.Price
		if tick.Time.After(s.lastTick) {
			s.lastTick = tick.Time
		}
		return true
	case start.After(last.Time):
		// Not yet materialized by a snapshot; the next refresh brings it in.
		if !a.opts.OpenNewBuckets {
			return false
		}
		s.bars = append(s.bars, openBar(start, tick.Price))
		s.lastTick = tick.Time
		return true
	default:
		return false
	}
}

func openBar(start time.Time, price float64) model.OHLCV {
	return model.OHLCV{Time: start, Open: price, High: price, Low: price, Close: price}
}

// Series returns a copy of the series for key.
func (a *Aggregator) Series(key model.SeriesKey) (Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[key]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{Key: key, State: StateNotLoaded}
	if s.loaded {
		snap.State = StateEmpty
		if len(s.bars) > 0 {
			snap.State = StateReady
		}
		snap.Bars = make([]model.OHLCV, len(s.bars))
		copy(snap.Bars, s.bars)
	}
	return snap, true
}

func (a *Aggregator) notify(key model.SeriesKey, reason events.SeriesReason) {
	if a.hub != nil {
		a.hub.Broadcast(events.SeriesChanged{Key: key, Reason: reason})
	}
}
