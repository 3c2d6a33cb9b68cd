// Package valuation keeps the account holdings and the latest streamed price per
// held asset, and derives the live valuation from them on demand.
package valuation

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/events"
	"MarketLens/internal/model"
)

// Engine is safe for concurrent use. Holdings and prices have independent locks
// and no method holds both at once.
type Engine struct {
	quote string
	hub   *events.Hub[events.ValuationChanged]

	holdingsMu sync.Mutex
	holdings   []model.Holding

	pricesMu sync.Mutex
	prices   map[string]float64
}

// NewEngine creates an Engine valuing in the given quote currency. hub may be nil.
func NewEngine(quote string, hub *events.Hub[events.ValuationChanged]) *Engine {
	return &Engine{
		quote:  quote,
		hub:    hub,
		prices: make(map[string]float64),
	}
}

// Quote returns the quote currency.
func (e *Engine) Quote() string { return e.quote }

// SetHoldings replaces the holdings snapshot. It reports whether the set of held
// market symbols changed, which is when streaming subscriptions must be recomputed.
func (e *Engine) SetHoldings(holdings []model.Holding) bool {
	cp := make([]model.Holding, len(holdings))
	copy(cp, holdings)

	e.holdingsMu.Lock()
	before := symbolsOf(e.quote, e.holdings)
	e.holdings = cp
	after := symbolsOf(e.quote, e.holdings)
	e.holdingsMu.Unlock()

	changed := !sameSymbols(before, after)
	if changed {
		e.prunePrices(after)
		log.WithField("assets", len(after)).Info("held assets changed")
	}
	e.publish()
	return changed
}

// Reset clears holdings and cached prices, e.g. when the account mode changes.
func (e *Engine) Reset() bool {
	e.holdingsMu.Lock()
	had := len(symbolsOf(e.quote, e.holdings)) > 0
	e.holdings = nil
	e.holdingsMu.Unlock()

	e.pricesMu.Lock()
	e.prices = make(map[string]float64)
	e.pricesMu.Unlock()

	e.publish()
	return had
}

// UpdatePrice caches the latest price for a market symbol and republishes the valuation.
func (e *Engine) UpdatePrice(symbol string, price float64) {
	e.pricesMu.Lock()
	e.prices[symbol] = price
	e.pricesMu.Unlock()

	e.publish()
}

// Watches reports whether symbol is a held, non-quote asset.
func (e *Engine) Watches(symbol string) bool {
	e.holdingsMu.Lock()
	defer e.holdingsMu.Unlock()
	_, ok := symbolsOf(e.quote, e.holdings)[symbol]
	return ok
}

// Symbols returns the market symbols of held non-quote assets, sorted.
func (e *Engine) Symbols() []string {
	e.holdingsMu.Lock()
	set := symbolsOf(e.quote, e.holdings)
	e.holdingsMu.Unlock()

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Holdings returns a copy of the current holdings snapshot.
func (e *Engine) Holdings() []model.Holding {
	e.holdingsMu.Lock()
	defer e.holdingsMu.Unlock()
	cp := make([]model.Holding, len(e.holdings))
	copy(cp, e.holdings)
	return cp
}

// Valuation computes the current valuation.
func (e *Engine) Valuation() model.Valuation {
	holdings := e.Holdings()

	e.pricesMu.Lock()
	prices := make(map[string]float64, len(e.prices))
	for k, v := range e.prices {
		prices[k] = v
	}
	e.pricesMu.Unlock()

	return Compute(e.quote, holdings, prices)
}

func (e *Engine) publish() {
	if e.hub != nil {
		e.hub.Broadcast(events.ValuationChanged{Valuation: e.Valuation()})
	}
}

func (e *Engine) prunePrices(keep map[string]struct{}) {
	e.pricesMu.Lock()
	defer e.pricesMu.Unlock()
	for s := range e.prices {
		if _, ok := keep[s]; !ok {
			delete(e.prices, s)
		}
	}
}

func symbolsOf(quote string, holdings []model.Holding) map[string]struct{} {
	set := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		if isQuote(quote, h.Currency) {
			continue
		}
		set[model.MarketSymbol(quote, h.Currency)] = struct{}{}
	}
	return set
}

func sameSymbols(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for s := range a {
		if _, ok := b[s]; !ok {
			return false
		}
	}
	return true
}
