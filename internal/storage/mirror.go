// =================================
// File: internal/storage/mirror.go
// =================================
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"uusd-router/internal/events"
	"uusd-router/internal/storage/models"
)

// Mirror writes an audit row for every route decision seen on the bus.
type Mirror struct {
	store  Storage
	logger *zap.Logger
}

// NewMirror creates a mirror over the given store.
func NewMirror(store Storage, logger *zap.Logger) *Mirror {
	return &Mirror{store: store, logger: logger.Named("storage-mirror")}
}

// Attach registers the mirror's handlers on the bus.
func (m *Mirror) Attach(bus *events.Bus) {
	bus.SubscribeFunc(events.RouteComputed, m.onRouteComputed)
}

func (m *Mirror) onRouteComputed(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.RouteComputedEvent)
	if !ok {
		return nil
	}

	audit := AuditFromEvent(evt)
	if err := m.store.SaveRouteAudit(ctx, audit); err != nil {
		return fmt.Errorf("persist route audit: %w", err)
	}

	m.logger.Debug("Route audit mirrored",
		zap.String("direction", audit.Direction),
		zap.String("route", audit.Route))
	return nil
}

// AuditFromEvent converts a bus event into its persistent form.
func AuditFromEvent(evt events.RouteComputedEvent) *models.RouteAudit {
	return &models.RouteAudit{
		Direction:      evt.Direction,
		Route:          evt.Route,
		InputAmount:    evt.InputAmount,
		ExpectedOutput: evt.ExpectedOutput,
		SavingsBps:     evt.SavingsBps,
		DisabledReason: evt.DisabledReason,
		ElapsedMs:      float64(evt.Elapsed.Microseconds()) / 1000,
		ObservedAt:     evt.Timestamp(),
	}
}
