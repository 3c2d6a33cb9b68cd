// Package chart owns the set of configured charts.
package chart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"MarketLens/internal/model"
)

// DefaultID identifies the fixed chart created at start.
const DefaultID = "default"

var (
	ErrFixedChart = errors.New("fixed chart cannot be removed")
	ErrNotFound   = errors.New("chart not found")
	ErrInterval   = errors.New("unsupported interval")
)

// Store holds chart configs in insertion order. All methods return copies.
type Store struct {
	mu     sync.Mutex
	charts []model.ChartConfig

	newSymbol   string
	newInterval model.Interval
}

// NewStore creates a store holding only the fixed default chart.
func NewStore(defaultKey, newChartKey model.SeriesKey) (*Store, error) {
	if !defaultKey.Interval.Valid() {
		return nil, fmt.Errorf("default chart: %w: %q", ErrInterval, defaultKey.Interval)
	}
	if !newChartKey.Interval.Valid() {
		return nil, fmt.Errorf("new chart: %w: %q", ErrInterval, newChartKey.Interval)
	}
	return &Store{
		charts: []model.ChartConfig{{
			ID:       DefaultID,
			Symbol:   normalize(defaultKey.Symbol),
			Interval: defaultKey.Interval,
			Fixed:    true,
		}},
		newSymbol:   normalize(newChartKey.Symbol),
		newInterval: newChartKey.Interval,
	}, nil
}

// Add appends a chart. Empty symbol or interval fall back to the new-chart defaults.
func (s *Store) Add(symbol string, interval model.Interval) (model.ChartConfig, error) {
	if symbol == "" {
		symbol = s.newSymbol
	}
	if interval == "" {
		interval = s.newInterval
	}
	if !interval.Valid() {
		return model.ChartConfig{}, fmt.Errorf("add chart: %w: %q", ErrInterval, interval)
	}

	c := model.ChartConfig{ID: uuid.NewString(), Symbol: normalize(symbol), Interval: interval}
	s.mu.Lock()
	s.charts = append(s.charts, c)
	s.mu.Unlock()
	return c, nil
}

// Remove deletes a chart and returns what it was.
func (s *Store) Remove(id string) (model.ChartConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return model.ChartConfig{}, fmt.Errorf("remove chart %s: %w", id, ErrNotFound)
	}
	c := s.charts[i]
	if c.Fixed {
		return model.ChartConfig{}, fmt.Errorf("remove chart %s: %w", id, ErrFixedChart)
	}
	s.charts = append(s.charts[:i], s.charts[i+1:]...)
	return c, nil
}

// Retarget changes a chart's symbol and/or interval; empty arguments keep the current value.
// It returns the config before and after the change.
func (s *Store) Retarget(id, symbol string, interval model.Interval) (before, after model.ChartConfig, err error) {
	if interval != "" && !interval.Valid() {
		return before, after, fmt.Errorf("retarget chart %s: %w: %q", id, ErrInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return before, after, fmt.Errorf("retarget chart %s: %w", id, ErrNotFound)
	}
	before = s.charts[i]
	if symbol != "" {
		s.charts[i].Symbol = normalize(symbol)
	}
	if interval != "" {
		s.charts[i].Interval = interval
	}
	return before, s.charts[i], nil
}

// Get returns one chart.
func (s *Store) Get(id string) (model.ChartConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.charts[i], true
	}
	return model.ChartConfig{}, false
}

// List returns all charts in insertion order.
func (s *Store) List() []model.ChartConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChartConfig, len(s.charts))
	copy(out, s.charts)
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.charts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func normalize(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }
