// ===============================
// File: internal/events/events.go
// ===============================
package events

import (
	"context"
	"time"
)

// EventType identifies an event class on the bus.
type EventType string

const (
	// Price events
	PriceUpdated EventType = "price.updated"

	// Routing events
	RouteComputed EventType = "route.computed"

	// Protocol state events
	ThresholdsRefreshed EventType = "thresholds.refreshed"

	// History events
	HistoryLoaded EventType = "history.loaded"

	// Monitor lifecycle events
	MonitorStarted EventType = "monitor.started"
	MonitorStopped EventType = "monitor.stopped"
)

// Event is the base interface carried on the bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType { return e.EventType }

func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// PriceUpdatedEvent is emitted on every successful price refresh.
// Source names where the price came from ("twap", "amm", "spot").
type PriceUpdatedEvent struct {
	BaseEvent
	Source          string
	PriceUsd        uint64
	CollateralRatio uint64
}

// RouteComputedEvent is emitted after a route decision. Amount fields
// are raw token-unit decimal strings; payloads stay primitive so
// consumers never import the router package.
type RouteComputedEvent struct {
	BaseEvent
	Direction      string
	Route          string
	InputAmount    string
	ExpectedOutput string
	SavingsBps     uint64
	DisabledReason string
	Elapsed        time.Duration
}

// ThresholdsRefreshedEvent is emitted when the mint/redeem gates are
// re-read from pool storage.
type ThresholdsRefreshedEvent struct {
	BaseEvent
	MintThreshold   uint64
	RedeemThreshold uint64
}

// HistoryLoadedEvent is emitted when a historical price series is
// assembled, naming the strategy that produced it.
type HistoryLoadedEvent struct {
	BaseEvent
	RangeHours int
	Points     int
	Strategy   string
}

// MonitorStartedEvent is emitted when the price monitor loop starts.
type MonitorStartedEvent struct {
	BaseEvent
	Interval time.Duration
}

// MonitorStoppedEvent is emitted when the monitor loop exits.
type MonitorStoppedEvent struct {
	BaseEvent
	Reason string
}

// Handler processes events of one subscribed type. Handlers run on the
// bus dispatch goroutine and must not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is a handle for removing a registered handler.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}
