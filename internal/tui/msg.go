// =========================
// File: internal/tui/msg.go
// =========================
package tui

import (
	"time"

	"uusd-router/internal/history"
	"uusd-router/internal/monitor"
	"uusd-router/internal/router"
)

// Tea message types for dashboard communication

// PriceMsg carries one monitor refresh into the program.
type PriceMsg struct {
	Update monitor.Update
}

// MonitorStatusMsg reports the monitor loop starting or stopping.
type MonitorStatusMsg struct {
	Running  bool
	Interval time.Duration
	Reason   string
}

// GatesMsg carries the latest mint/redeem thresholds after a
// refresh.
type GatesMsg struct {
	Mint   uint64
	Redeem uint64
}

// RouteMsg carries a finished route probe. Direction is set even when
// the probe failed so the panel knows which column to update.
type RouteMsg struct {
	Direction router.Direction
	Result    *router.RouteResult
	Err       error
}

// HistoryMsg carries a reloaded chart series.
type HistoryMsg struct {
	Points []history.PriceDataPoint
	Err    error
}

// tickMsg drives the clock, log tail refresh and pending-update flush.
type tickMsg time.Time
