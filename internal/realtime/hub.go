package realtime

import (
	"context"
	"sync"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/metrics"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

// Hub fans changes out to in-process subscribers. Each subscription gets its own
// goroutine, so a subscriber sees changes in publish order and a slow handler
// never blocks the publisher or other subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Publish dispatches c to matching subscribers
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.Dispatch(c)
	return nil
}

// Dispatch queues c on every subscription whose table and filter match
func (h *Hub) Dispatch(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.FeedChanges.WithLabelValues(c.Table, string(c.Event)).Inc()
	for _, s := range h.subs {
		if s.table == c.Table && s.filter.Matches(c) {
			s.enqueue(c)
		}
	}
}

// Subscribe registers fn for changes on table that match filter
func (h *Hub) Subscribe(table string, filter Filter, fn Handler) Subscription {
	s := &subscription{
		table:  table,
		filter: filter,
		fn:     fn,
		hub:    h,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Unsubscribe()
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	metrics.FeedSubscriptions.Inc()
	logger.Debug().Str("table", table).Str("filter", filter.String()).Msg("feed subscription opened")

	go s.run()
	return s
}

// Active returns the number of live subscriptions
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription; later Subscribe calls return inert subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (h *Hub) remove(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; !ok {
		return false
	}
	delete(h.subs, id)
	return true
}

type subscription struct {
	id     uint64
	table  string
	filter Filter
	fn     Handler
	hub    *Hub

	mu     sync.Mutex
	queue  []Change
	closed bool
	once   sync.Once
	wake   chan struct{}
	done   chan struct{}
}

func (s *subscription) enqueue(c Change) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.queue) == 0 {
		return Change{}, false
	}
	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, true
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			c, ok := s.next()
			if !ok {
				break
			}
			s.fn(c)
		}
	}
}

// Unsubscribe stops delivery. A handler already running finishes; nothing queued runs after.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)

		if s.hub != nil && s.hub.remove(s.id) {
			metrics.FeedSubscriptions.Dec()
		}
	})
}
