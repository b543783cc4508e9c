// Package events is the in-process domain event notifier. Side effects such
// as sending a verification email ride on it so they never block or fail a
// request. Delivery is at-most-once with no persistence: everything published
// here is re-triggerable (e.g. resend verification).
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const TopicVerificationRequested = "user.verification_requested"

type Event struct {
	ID        string
	Topic     string
	Timestamp time.Time
	Payload   any
}

// VerificationRequested is published on signup and on resend.
type VerificationRequested struct {
	UserID           string
	Email            string
	Name             string
	VerificationLink string
}

type Handler func(Event)

// Bus fans events out to subscribers through a buffered queue serviced by a
// single dispatcher goroutine. Handler panics and slow handlers stay out of
// the publisher's call stack.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	queue    chan Event
	closed   bool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewBus(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan Event, queueSize),
		logger:   logger,
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish is fire-and-forget. If the queue is full the event is dropped and
// logged rather than blocking the request path.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.logger.Warn("event published after bus close", "topic", topic)
		return
	}
	select {
	case b.queue <- ev:
	default:
		b.logger.Warn("event queue full, dropping event", "topic", topic, "event_id", ev.ID)
	}
}

// Close stops accepting events, drains the queue and waits for the
// dispatcher to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for ev := range b.queue {
		b.mu.Lock()
		subs := make([]Handler, len(b.handlers[ev.Topic]))
		copy(subs, b.handlers[ev.Topic])
		b.mu.Unlock()

		for _, h := range subs {
			b.invoke(ev, h)
		}
	}
}

func (b *Bus) invoke(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "topic", ev.Topic, "event_id", ev.ID, "panic", r)
		}
	}()
	h(ev)
}
