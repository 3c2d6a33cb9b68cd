// Package router consumes inbound stream messages and forwards ticks to the
// series and price stores that want them.
package router

import (
	"context"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/model"
	"MarketLens/internal/stream"
)

// SeriesSink is implemented by candle.Aggregator.
type SeriesSink interface {
	Interested(symbol string) bool
	ApplyTick(tick model.Tick) int
}

// PriceSink is implemented by valuation.Engine.
type PriceSink interface {
	Watches(symbol string) bool
	UpdatePrice(symbol string, price float64)
}

// LogSink receives backend log and info messages untouched.
type LogSink interface {
	Forward(kind stream.MessageType, payload stream.LogPayload)
}

// LogrusSink writes forwarded messages through logrus at the carried level.
type LogrusSink struct{}

func (LogrusSink) Forward(kind stream.MessageType, p stream.LogPayload) {
	entry := log.WithField("source", "backend").WithField("type", string(kind))
	level, err := log.ParseLevel(strings.ToLower(p.Level))
	if err != nil || p.Level == "" {
		level = log.InfoLevel
	}
	// Panic and fatal levels are capped at error.
	if level < log.ErrorLevel {
		level = log.ErrorLevel
	}
	entry.Log(level, p.Message)
}

// Stats counts routing outcomes.
type Stats struct {
	Routed  uint64
	Dropped uint64
	Logs    uint64
}

// Router forwards each tick once to every interested sink, in arrival order.
type Router struct {
	series SeriesSink
	prices PriceSink
	logs   LogSink

	routed  atomic.Uint64
	dropped atomic.Uint64
	logged  atomic.Uint64
}

// New creates a router. A nil logs sink defaults to LogrusSink.
func New(series SeriesSink, prices PriceSink, logs LogSink) *Router {
	if logs == nil {
		logs = LogrusSink{}
	}
	return &Router{series: series, prices: prices, logs: logs}
}

// Route delivers tick and reports whether any sink took it.
func (r *Router) Route(tick model.Tick) bool {
	delivered := false
	if r.series.Interested(tick.Symbol) {
		r.series.ApplyTick(tick)
		delivered = true
	}
	if r.prices.Watches(tick.Symbol) {
		r.prices.UpdatePrice(tick.Symbol, tick.Price)
		delivered = true
	}
	if !delivered {
		r.dropped.Add(1)
		log.WithField("symbol", tick.Symbol).Debug("dropping tick for unwatched symbol")
		return false
	}
	r.routed.Add(1)
	return true
}

// Handle processes one inbound message.
func (r *Router) Handle(msg stream.Message) {
	switch msg.Type {
	case stream.TypeTick:
		if msg.Tick != nil {
			r.Route(*msg.Tick)
		}
	case stream.TypeLog, stream.TypeInfo:
		if msg.Log != nil {
			r.logged.Add(1)
			r.logs.Forward(msg.Type, *msg.Log)
		}
	}
}

// Run consumes in until it is closed or ctx is done.
func (r *Router) Run(ctx context.Context, in <-chan stream.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			r.Handle(msg)
		}
	}
}

// Stats returns counters since start.
func (r *Router) Stats() Stats {
	return Stats{Routed: r.routed.Load(), Dropped: r.dropped.Load(), Logs: r.logged.Load()}
}
