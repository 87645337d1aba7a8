// ==================================
// File: internal/storage/history.go
// ==================================
package storage

import (
	"context"

	"go.uber.org/zap"

	"uusd-router/internal/history"
	"uusd-router/internal/storage/models"
)

// HistoryProvider is the slice of the history source the mirror wraps.
type HistoryProvider interface {
	PriceHistory(ctx context.Context, cfg history.Config) ([]history.PriceDataPoint, error)
}

var _ HistoryProvider = (*history.Source)(nil)

// PersistingHistory decorates a history provider, mirroring every
// successfully assembled series. A mirror failure is logged and
// swallowed; the caller still gets the series.
type PersistingHistory struct {
	inner  HistoryProvider
	store  Storage
	logger *zap.Logger
}

var _ HistoryProvider = (*PersistingHistory)(nil)

// NewPersistingHistory wraps inner so loaded series land in store.
func NewPersistingHistory(inner HistoryProvider, store Storage, logger *zap.Logger) *PersistingHistory {
	return &PersistingHistory{
		inner:  inner,
		store:  store,
		logger: logger.Named("storage-mirror"),
	}
}

// PriceHistory loads the series and mirrors it under the window key.
func (p *PersistingHistory) PriceHistory(ctx context.Context, cfg history.Config) ([]history.PriceDataPoint, error) {
	points, err := p.inner.PriceHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := p.store.SavePricePoints(ctx, PointsToModels(cfg.Key(), points)); err != nil {
		p.logger.Warn("Failed to mirror price history",
			zap.String("window", cfg.Key()),
			zap.Error(err))
	}
	return points, nil
}

// PointsToModels converts a series to rows keyed by the window.
func PointsToModels(seriesKey string, points []history.PriceDataPoint) []*models.PricePoint {
	rows := make([]*models.PricePoint, 0, len(points))
	for _, pt := range points {
		rows = append(rows, &models.PricePoint{
			SeriesKey:   seriesKey,
			BlockNumber: pt.BlockNumber,
			Timestamp:   pt.Timestamp,
			PriceUsd:    pt.PriceUsd,
		})
	}
	return rows
}

// PointsFromModels converts mirrored rows back into a live series.
func PointsFromModels(rows []*models.PricePoint) []history.PriceDataPoint {
	points := make([]history.PriceDataPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, history.PriceDataPoint{
			Timestamp:   row.Timestamp,
			PriceUsd:    row.PriceUsd,
			BlockNumber: row.BlockNumber,
		})
	}
	return points
}
