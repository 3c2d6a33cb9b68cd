// Package events carries internal change notifications from the stores to whatever
// rendering or reporting collaborator is wired in.
package events

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"MarketLens/internal/model"
)

const subscriberBuffer = 128

// SeriesReason says what mutated a series.
type SeriesReason string

const (
	SeriesReplaced SeriesReason = "snapshot"
	SeriesTicked   SeriesReason = "tick"
	SeriesDropped  SeriesReason = "dropped"
)

// SeriesChanged is emitted after a series was replaced, updated by a tick, or dropped.
type SeriesChanged struct {
	Key    model.SeriesKey
	Reason SeriesReason
}

// ValuationChanged is emitted after holdings or a watched price changed.
type ValuationChanged struct {
	Valuation model.Valuation
}

// Hub fans events out to subscribers. Broadcast never blocks: a subscriber whose
// buffer is full is disconnected and its channel closed.
type Hub[T any] struct {
	name string
	mu   sync.RWMutex
	subs map[int64]chan T
	seq  atomic.Int64
}

func NewHub[T any](name string) *Hub[T] {
	return &Hub[T]{name: name, subs: make(map[int64]chan T)}
}

func (h *Hub[T]) Subscribe() (int64, <-chan T) {
	id := h.seq.Add(1)
	ch := make(chan T, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub[T]) Unsubscribe(id int64) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub[T]) Broadcast(event T) {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			log.Warnf("%s hub: disconnected lagging subscriber %d (channel full)", h.name, id)
		}
	}
	h.mu.Unlock()
}

// Len returns the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
