// ============================
// File: internal/tui/bridge.go
// ============================
package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"uusd-router/internal/events"
	"uusd-router/internal/monitor"
)

// defaultBridgeBuffer bounds the message channel so a stalled
// terminal never blocks the monitor goroutine.
const defaultBridgeBuffer = 64

// Bridge carries updates from the monitor and the event bus into the
// tea program. Price refreshes are throttled so a fast poll interval
// cannot overwhelm the render loop; the newest refresh is kept pending
// and delivered on the next flush instead of being lost.
type Bridge struct {
	mu             sync.RWMutex
	updateInterval time.Duration
	lastUpdate     time.Time
	pending        *PriceMsg
	outputCh       chan tea.Msg
	logger         *zap.Logger

	// Stats for monitoring
	droppedUpdates uint64
	sentUpdates    uint64
}

// NewBridge creates a bridge that forwards at most one price update
// per updateInterval. A zero interval disables throttling.
func NewBridge(updateInterval time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		updateInterval: updateInterval,
		outputCh:       make(chan tea.Msg, defaultBridgeBuffer),
		logger:         logger.Named("tui-bridge"),
	}
}

// OnPriceUpdate forwards a monitor refresh, throttling if necessary.
// Safe to call from any goroutine; wire it as the monitor callback.
func (b *Bridge) OnPriceUpdate(update monitor.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	msg := PriceMsg{Update: update}

	if now.Sub(b.lastUpdate) < b.updateInterval {
		b.pending = &msg
		b.droppedUpdates++
		b.logger.Debug("Price update throttled",
			zap.Uint64("spot_usd", update.SpotUsd),
			zap.Duration("since_last", now.Sub(b.lastUpdate)))
		return
	}

	select {
	case b.outputCh <- msg:
		b.lastUpdate = now
		b.sentUpdates++
		b.pending = nil
	default:
		// Channel full, keep the newest update as pending.
		b.pending = &msg
		b.droppedUpdates++
		b.logger.Warn("Bridge channel full, storing update as pending",
			zap.Uint64("spot_usd", update.SpotUsd))
	}
}

// FlushPending sends the pending update once the throttle window has
// passed. The model calls this on every tick so a throttled refresh is
// delivered eventually.
func (b *Bridge) FlushPending() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		return
	}

	now := time.Now()
	if now.Sub(b.lastUpdate) < b.updateInterval {
		return
	}

	select {
	case b.outputCh <- *b.pending:
		b.lastUpdate = now
		b.sentUpdates++
		b.pending = nil
	default:
		b.logger.Debug("Cannot flush pending update, channel still full")
	}
}

// Attach subscribes the bridge to monitor lifecycle and threshold
// refresh events so the header can show the poll loop state and the
// current mint/redeem gates.
func (b *Bridge) Attach(bus *events.Bus) {
	bus.SubscribeFunc(events.MonitorStarted, func(_ context.Context, evt events.Event) error {
		started, ok := evt.(events.MonitorStartedEvent)
		if !ok {
			return nil
		}
		b.send(MonitorStatusMsg{Running: true, Interval: started.Interval})
		return nil
	})
	bus.SubscribeFunc(events.MonitorStopped, func(_ context.Context, evt events.Event) error {
		stopped, ok := evt.(events.MonitorStoppedEvent)
		if !ok {
			return nil
		}
		b.send(MonitorStatusMsg{Running: false, Reason: stopped.Reason})
		return nil
	})
	bus.SubscribeFunc(events.ThresholdsRefreshed, func(_ context.Context, evt events.Event) error {
		refreshed, ok := evt.(events.ThresholdsRefreshedEvent)
		if !ok {
			return nil
		}
		b.send(GatesMsg{Mint: refreshed.MintThreshold, Redeem: refreshed.RedeemThreshold})
		return nil
	})
}

// send delivers msg without blocking the bus dispatch goroutine.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.outputCh <- msg:
	default:
	}
}

// Wait returns a command that blocks for the next bridged message.
// The model re-issues it after every delivery.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.outputCh
	}
}

// Stats returns sent and dropped update counts.
func (b *Bridge) Stats() (sent, dropped uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sentUpdates, b.droppedUpdates
}

// HasPending reports whether a throttled update is waiting.
func (b *Bridge) HasPending() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pending != nil
}
