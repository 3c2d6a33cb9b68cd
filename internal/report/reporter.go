package report

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"MarketLens/internal/candle"
	"MarketLens/internal/events"
	"MarketLens/internal/model"
)

// SeriesReader is implemented by candle.Aggregator.
type SeriesReader interface {
	Series(key model.SeriesKey) (candle.Snapshot, bool)
}

// Reporter logs rendered valuations and series changes. Valuations are
// throttled because every watched tick produces one.
type Reporter struct {
	Quote      string
	Valuations *events.Hub[events.ValuationChanged]
	SeriesHub  *events.Hub[events.SeriesChanged]
	Series     SeriesReader
	Out        func(string)

	throttle rate.Sometimes
}

// NewReporter creates a reporter writing to logrus at info level.
func NewReporter(quote string, vals *events.Hub[events.ValuationChanged], series *events.Hub[events.SeriesChanged],
	reader SeriesReader, every time.Duration) *Reporter {
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Reporter{
		Quote:      quote,
		Valuations: vals,
		SeriesHub:  series,
		Series:     reader,
		Out:        func(s string) { log.Info(s) },
		throttle:   rate.Sometimes{First: 1, Interval: every},
	}
}

// Run consumes both hubs until ctx is done. A subscription dropped for lagging
// is re-established.
func (r *Reporter) Run(ctx context.Context) {
	vid, vals := r.Valuations.Subscribe()
	sid, series := r.SeriesHub.Subscribe()
	defer func() {
		r.Valuations.Unsubscribe(vid)
		r.SeriesHub.Unsubscribe(sid)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-vals:
			if !ok {
				vid, vals = r.Valuations.Subscribe()
				continue
			}
			r.throttle.Do(func() { r.Out("valuation\n" + FormatValuation(r.Quote, evt.Valuation)) })
		case evt, ok := <-series:
			if !ok {
				sid, series = r.SeriesHub.Subscribe()
				continue
			}
			r.handleSeries(evt)
		}
	}
}

func (r *Reporter) handleSeries(evt events.SeriesChanged) {
	switch evt.Reason {
	case events.SeriesDropped:
		r.Out(evt.Key.String() + " dropped")
	case events.SeriesReplaced:
		if snap, ok := r.Series.Series(evt.Key); ok {
			r.Out(FormatSeries(snap))
		}
	default:
		log.WithField("series", evt.Key.String()).Debug("series ticked")
	}
}
