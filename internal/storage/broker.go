package storage

import (
	"sync"
	"sync/atomic"

	"github.com/julianstephens/tally/internal/models"
)

// Feed is a change source that runs only while a broker has subscribers.
// Start must not block; Stop returns once the source has stopped publishing.
type Feed interface {
	Start()
	Stop()
}

// Broker fans habit lists out to listeners. Each listener gets its own
// delivery goroutine, so a slow listener never delays another, and calls to
// one listener never overlap. When deliveries queue up only the newest list
// is kept.
type Broker struct {
	feed Feed
	gen  atomic.Uint64

	lifecycle sync.Mutex // serializes feed Start/Stop; never held by Publish

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

// NewBroker returns a broker driving feed. A nil feed is allowed.
func NewBroker(feed Feed) *Broker {
	return &Broker{feed: feed, subs: make(map[uint64]*subscriber)}
}

// Mark returns a generation to pass to Publish. Take it immediately before
// reading the list to publish; a listener never receives a list older than
// one it has already seen.
func (b *Broker) Mark() uint64 {
	return b.gen.Add(1)
}

// Publish queues habits for every current listener.
func (b *Broker) Publish(gen uint64, habits []models.Habit) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.offer(gen, habits)
	}
}

// Len returns the number of registered listeners.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscribe registers fn and delivers initial, read at generation gen, on
// the calling goroutine before returning.
func (b *Broker) Subscribe(fn Listener, load func() (uint64, []models.Habit, error)) (Unsubscribe, error) {
	s := newSubscriber(fn)

	b.lifecycle.Lock()
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	first := len(b.subs) == 1
	b.mu.Unlock()
	if first && b.feed != nil {
		b.feed.Start()
	}
	b.lifecycle.Unlock()

	unsubscribe := b.unsubscriber(id, s)

	gen, habits, err := load()
	if err != nil {
		unsubscribe()
		return nil, err
	}
	s.deliverInitial(gen, habits)
	go s.run()

	return unsubscribe, nil
}

func (b *Broker) unsubscriber(id uint64, s *subscriber) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.lifecycle.Lock()
			defer b.lifecycle.Unlock()

			b.mu.Lock()
			_, registered := b.subs[id]
			delete(b.subs, id)
			last := registered && len(b.subs) == 0
			b.mu.Unlock()

			s.close()
			if last && b.feed != nil {
				b.feed.Stop()
			}
		})
	}
}

// Close drops every listener and stops the feed.
func (b *Broker) Close() {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	if len(subs) > 0 && b.feed != nil {
		b.feed.Stop()
	}
}

type subscriber struct {
	fn     Listener
	wake   chan struct{}
	mu     sync.Mutex
	last   uint64
	queued []models.Habit
	qgen   uint64
	has    bool
	closed bool
	done   chan struct{}
}

func newSubscriber(fn Listener) *subscriber {
	return &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscriber) offer(gen uint64, habits []models.Habit) {
	s.mu.Lock()
	if s.closed || gen <= s.last || (s.has && gen <= s.qgen) {
		s.mu.Unlock()
		return
	}
	s.queued, s.qgen, s.has = habits, gen, true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) deliverInitial(gen uint64, habits []models.Habit) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if gen > s.last {
		s.last = gen
	}
	if s.has && s.qgen <= gen {
		s.queued, s.has = nil, false
	}
	s.mu.Unlock()

	s.fn(models.CloneHabits(habits))
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if !s.has {
			s.mu.Unlock()
			continue
		}
		habits, gen := s.queued, s.qgen
		s.queued, s.has = nil, false
		s.last = gen
		s.mu.Unlock()

		s.fn(models.CloneHabits(habits))
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queued, s.has = nil, false
	close(s.done)
}
