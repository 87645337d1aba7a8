// ==================================
// File: internal/storage/storage.go
// ==================================
// Package storage mirrors price history and route decisions into a
// persistent store. The mirror is an optimization only: the engine is
// fully functional without it, and a write failure never fails the
// operation that produced the data.
package storage

import (
	"context"

	"uusd-router/internal/storage/models"
)

// Storage is the persistence interface for the mirror.
type Storage interface {
	// Price history mirror
	SavePricePoints(ctx context.Context, points []*models.PricePoint) error
	LoadPricePoints(ctx context.Context, seriesKey string, limit int) ([]*models.PricePoint, error)

	// Route audit trail
	SaveRouteAudit(ctx context.Context, audit *models.RouteAudit) error
	RecentRouteAudits(ctx context.Context, limit int) ([]*models.RouteAudit, error)

	RunMigrations() error
	Close() error
}
