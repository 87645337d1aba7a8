// ============================
// File: internal/events/bus.go
// ============================
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-memory publish/subscribe hub. Publishing never blocks
// the caller; delivery happens on a single dispatch goroutine, so
// handlers observe events in publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler

	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan Event
}

// NewBus starts a bus with the given queue capacity.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("events"),
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan Event, bufferSize),
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Subscribe registers a handler for one event type and returns its
// subscription handle.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, typ: eventType}
}

// SubscribeFunc registers a plain function as a handler.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event for delivery. A full queue drops the event
// rather than stalling the publisher.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shut down")
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event queue full")
	}
}

// PublishSync delivers an event to current subscribers inline on the
// caller's goroutine, bypassing the queue. Handler errors are logged
// and returned combined; queued Publish only logs them.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	registered := b.handlers[event.Type()]
	handlers := make(map[string]Handler, len(registered))
	for id, h := range registered {
		handlers[id] = h
	}
	b.mu.RUnlock()

	var errs []error
	for id, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %v", errs)
	}
	return nil
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Drain whatever was queued before shutdown.
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			_ = b.PublishSync(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops the dispatch loop after draining the queue.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}
