// Package position fans live vehicle positions out to drive sessions.
package position

import (
	"sync"

	"dropoff-route-service/internal/domain"
)

// Hub holds one Feed per route.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]*Feed
}

func NewHub() *Hub {
	return &Hub{feeds: map[string]*Feed{}}
}

// Feed returns the route's feed, creating it on first use.
func (h *Hub) Feed(routeID string) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[routeID]
	if !ok {
		f = NewFeed()
		h.feeds[routeID] = f
	}
	return f
}

// Feed is a PositionSource that delivers published samples to every current
// subscriber, on the publisher's goroutine.
type Feed struct {
	mu     sync.RWMutex
	subs   map[int]func(domain.PositionSample)
	nextID int
	last   *domain.PositionSample
}

func NewFeed() *Feed {
	return &Feed{subs: map[int]func(domain.PositionSample){}}
}

func (f *Feed) Subscribe(onSample func(domain.PositionSample)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = onSample
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers sample to current subscribers and reports how many
// received it.
func (f *Feed) Publish(sample domain.PositionSample) int {
	f.mu.Lock()
	latest := sample
	f.last = &latest
	handlers := make([]func(domain.PositionSample), 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(sample)
	}
	return len(handlers)
}

// Last returns the most recently published sample.
func (f *Feed) Last() (domain.PositionSample, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return domain.PositionSample{}, false
	}
	return *f.last, true
}

func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish delivers sample to the route's feed.
func (h *Hub) Publish(routeID string, sample domain.PositionSample) int {
	return h.Feed(routeID).Publish(sample)
}
