// internal/events/bus.go
package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/status"
)

// DefaultQueueSize bounds each subscriber's backlog.
const DefaultQueueSize = 64

// Handler receives events on the subscriber's own goroutine, in order.
type Handler func(status.Event)

// Bus fans state events out to subscribers without ever blocking the
// publisher. A slow subscriber loses its oldest queued events.
type Bus struct {
	logger    zerolog.Logger
	queueSize int

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

type subscriber struct {
	id      uint64
	handler Handler
	queue   chan status.Event
	done    chan struct{}
	once    sync.Once
}

// NewBus creates a bus. queueSize <= 0 uses DefaultQueueSize.
func NewBus(logger zerolog.Logger, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		logger:    logger.With().Str("component", "events").Logger(),
		queueSize: queueSize,
		subs:      make(map[uint64]*subscriber),
	}
}

// Subscribe registers h and returns a func that removes it. The returned
// func is idempotent. Subscribing to a closed bus returns a no-op.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || h == nil {
		return func() {}
	}

	b.nextID++
	s := &subscriber{
		id:      b.nextID,
		handler: h,
		queue:   make(chan status.Event, b.queueSize),
		done:    make(chan struct{}),
	}
	b.subs[s.id] = s
	go b.run(s)

	return func() {
		b.mu.Lock()
		delete(b.subs, s.id)
		b.mu.Unlock()
		s.stop()
	}
}

// Publish queues ev for every subscriber and returns immediately.
func (b *Bus) Publish(ev status.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		b.offer(s, ev)
	}
}

// offer enqueues ev, evicting the oldest entry when the queue is full.
// Called with b.mu held, so there is a single producer per queue.
func (b *Bus) offer(s *subscriber, ev status.Event) {
	for {
		select {
		case s.queue <- ev:
			return
		default:
		}
		select {
		case <-s.queue:
			b.dropped.Add(1)
			b.logger.Debug().Uint64("subscriber", s.id).Msg("event queue full, dropped oldest")
		default:
		}
	}
}

// Dropped is the number of events evicted across all subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close stops every subscriber. Queued events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (b *Bus) run(s *subscriber) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			b.deliver(s, ev)
		}
	}
}

func (b *Bus) deliver(s *subscriber, ev status.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Uint64("subscriber", s.id).Msg("event handler panicked")
		}
	}()
	s.handler(ev)
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}
