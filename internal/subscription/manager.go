// Package subscription decides which market symbols must be streamed.
package subscription

import (
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/model"
)

// Publisher is the transport boundary that receives full-replacement subscription lists.
type Publisher interface {
	Subscribe(symbols []string) error
}

// Compute returns the sorted, de-duplicated union of chart symbols and the market
// symbols of every held asset except the quote currency.
func Compute(quote string, charts []model.ChartConfig, holdings []model.Holding) []string {
	set := make(map[string]struct{}, len(charts)+len(holdings))
	for _, c := range charts {
		if c.Symbol != "" {
			set[c.Symbol] = struct{}{}
		}
	}
	for _, h := range holdings {
		if h.Currency == "" || strings.EqualFold(h.Currency, quote) {
			continue
		}
		set[model.MarketSymbol(quote, h.Currency)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Manager remembers the last emitted set and only emits when it changes.
type Manager struct {
	quote string
	pub   Publisher

	mu      sync.Mutex
	current []string
	emitted bool
}

func NewManager(quote string, pub Publisher) *Manager {
	return &Manager{quote: quote, pub: pub}
}

// Update recomputes the set and sends it to the publisher when it differs from the
// previously emitted one. It reports whether an emission happened.
func (m *Manager) Update(charts []model.ChartConfig, holdings []model.Holding) (bool, error) {
	next := Compute(m.quote, charts, holdings)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emitted && equal(m.current, next) {
		return false, nil
	}
	if !m.emitted && len(next) == 0 {
		return false, nil
	}
	m.current = next
	m.emitted = true

	log.WithField("symbols", strings.Join(next, ",")).Info("subscription set changed")
	if err := m.pub.Subscribe(next); err != nil {
		return true, err
	}
	return true, nil
}

// Current returns a copy of the last emitted set.
func (m *Manager) Current() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.current))
	copy(out, m.current)
	return out
}

// Contains reports whether symbol is in the last emitted set.
func (m *Manager) Contains(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.SearchStrings(m.current, symbol)
	return i < len(m.current) && m.current[i] == symbol
}

// equal compares two sorted sets.
func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
