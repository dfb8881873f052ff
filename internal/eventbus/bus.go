// Package eventbus fans wizard lifecycle events out to in-process
// consumers. The activity recorder publishes once the log entry is written;
// consumers see events in publish order.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/matthewbaird/listingform/internal/event"
)

// DefaultBufferSize is used when New is given a non-positive size.
const DefaultBufferSize = 256

// Handler consumes wizard events. An error is logged and never stops
// delivery to the remaining consumers.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

type consumer struct {
	name string
	h    Handler
}

// Bus queues wizard events and delivers each one to every consumer from a
// single goroutine. Publishing never blocks a request: when the queue is
// full the event is dropped and counted.
type Bus struct {
	mu        sync.RWMutex
	consumers []consumer

	queue   chan event.DomainEvent
	stopped chan struct{}
	closeQ  sync.Once
	dropped atomic.Int64
	logger  *slog.Logger
}

func New(bufSize int, logger *slog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		queue:   make(chan event.DomainEvent, bufSize),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Subscribe adds a consumer. Consumers added after Start only see events
// dispatched from then on.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	b.consumers = append(b.consumers, consumer{name: name, h: h})
	b.mu.Unlock()
}

// Publish queues evt for delivery.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	select {
	case b.queue <- evt:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full", "type", evt.EventType, "wizard", evt.WizardID)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Start launches delivery. When ctx ends, whatever is already queued is
// still delivered before the goroutine exits.
func (b *Bus) Start(ctx context.Context) {
	go b.run(ctx)
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.stopped)
	for {
		select {
		case evt, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(ctx, evt)
		case <-ctx.Done():
			b.drain(ctx)
			return
		}
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(ctx, evt)
		default:
			return
		}
	}
}

// Stop closes the queue and waits until every queued event is delivered.
// It is safe to call more than once; Publish must not follow it.
func (b *Bus) Stop() {
	b.closeQ.Do(func() { close(b.queue) })
	<-b.stopped
}

func (b *Bus) deliver(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	consumers := b.consumers
	b.mu.RUnlock()

	for _, c := range consumers {
		if err := c.h.HandleEvent(ctx, evt); err != nil {
			b.logger.Error("event consumer failed", "consumer", c.name, "type", evt.EventType, "wizard", evt.WizardID, "err", err)
		}
	}
}
