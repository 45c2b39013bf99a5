package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus carries client lifecycle events to telemetry, history and the
// API feed. Every subscriber name owns one worker goroutine with an
// unbounded queue, so a subscriber sees events in emit order across all
// the event types it subscribed to, and Emit never blocks the session loop.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]handlerEntry
	subscribers map[string]*subscriber
	stopped     bool
	wg          sync.WaitGroup
	now         func() time.Time
}

type handlerEntry struct {
	sub     *subscriber
	handler HandlerFunc
}

type delivery struct {
	ctx     context.Context
	event   Event
	handler HandlerFunc

	// done is non-nil for EmitSync.
	done chan error
}

type subscriber struct {
	name string
	refs int

	mu      sync.Mutex
	pending []delivery
	closed  bool
	wake    chan struct{}
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers:    make(map[EventType][]handlerEntry),
		subscribers: make(map[string]*subscriber),
		now:         time.Now,
	}
}

// Subscribe registers a handler function for a specific event type. Handlers
// subscribed under the same name share one delivery queue.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.stopped {
		log.Warn().Str("event", string(eventType)).Str("handler", name).Msg("subscribe after bus stopped")
		return
	}

	sub, ok := eb.subscribers[name]
	if !ok {
		sub = &subscriber{name: name, wake: make(chan struct{}, 1)}
		eb.subscribers[name] = sub
		eb.wg.Add(1)
		go eb.work(sub)
	}
	sub.refs++

	eb.handlers[eventType] = append(eb.handlers[eventType], handlerEntry{
		sub:     sub,
		handler: handler,
	})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes a named handler from a specific event type. Events
// already queued for it are still delivered.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers := eb.handlers[eventType]
	filtered := handlers[:0:0]
	for _, h := range handlers {
		if h.sub.name != name {
			filtered = append(filtered, h)
			continue
		}
		h.sub.refs--
		if h.sub.refs == 0 {
			delete(eb.subscribers, name)
			h.sub.close()
		}
	}
	eb.handlers[eventType] = filtered

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("unsubscribed from event")
}

// Emit queues an event for every handler subscribed to its type. A zero
// At is set to the current time.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	eb.dispatch(ctx, event, false)
}

// EmitSync queues an event and waits until every handler has run. Returns
// the first error encountered, if any.
func (eb *EventBus) EmitSync(ctx context.Context, event Event) error {
	var firstErr error
	for _, done := range eb.dispatch(ctx, event, true) {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (eb *EventBus) dispatch(ctx context.Context, event Event, wait bool) []chan error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped {
		return nil
	}
	handlers := eb.handlers[event.Type]
	if len(handlers) == 0 {
		return nil
	}
	if event.At.IsZero() {
		event.At = eb.now()
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	var waits []chan error
	for _, h := range handlers {
		d := delivery{ctx: ctx, event: event, handler: h.handler}
		if wait {
			d.done = make(chan error, 1)
		}
		if h.sub.push(d) && wait {
			waits = append(waits, d.done)
		}
	}
	return waits
}

// Stop stops accepting new events and waits until every queued event has
// been handled.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	for _, sub := range eb.subscribers {
		sub.close()
	}
	eb.mu.Unlock()

	eb.wg.Wait()
	log.Info().Msg("event bus stopped")
}

// HandlerCount returns the number of handlers registered for a specific event type.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}

func (eb *EventBus) work(sub *subscriber) {
	defer eb.wg.Done()
	for {
		batch, closed := sub.take()
		for _, d := range batch {
			err := sub.run(d)
			if d.done != nil {
				d.done <- err
			}
		}
		if len(batch) == 0 {
			if closed {
				return
			}
			<-sub.wake
		}
	}
}

func (s *subscriber) push(d delivery) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending = append(s.pending, d)
	s.signal()
	return true
}

func (s *subscriber) take() ([]delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch, s.closed
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(d.event.Type)).
				Str("handler", s.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err = d.handler(d.ctx, d.event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(d.event.Type)).
			Str("handler", s.name).
			Msg("handler returned error")
	}
	return err
}
