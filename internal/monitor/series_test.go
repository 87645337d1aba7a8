// =======================================
// File: internal/monitor/series_test.go
// =======================================
package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seriesPoint(i int, price uint64) Point {
	base := time.Unix(1_700_000_000, 0).UTC()
	return Point{Time: base.Add(time.Duration(i) * time.Minute), PriceUsd: price}
}

func TestPriceSeriesDropsOldestWhenFull(t *testing.T) {
	s := NewPriceSeries(3)
	for i, price := range []uint64{1, 2, 3, 4, 5} {
		s.Append(seriesPoint(i, price))
	}

	require.Equal(t, 3, s.Len())

	points := s.Recent(0)
	require.Len(t, points, 3)
	require.Equal(t, uint64(3), points[0].PriceUsd)
	require.Equal(t, uint64(4), points[1].PriceUsd)
	require.Equal(t, uint64(5), points[2].PriceUsd)
}

func TestPriceSeriesRecentLimit(t *testing.T) {
	s := NewPriceSeries(10)
	for i, price := range []uint64{10, 20, 30} {
		s.Append(seriesPoint(i, price))
	}

	newest := s.Recent(2)
	require.Len(t, newest, 2)
	require.Equal(t, uint64(20), newest[0].PriceUsd)
	require.Equal(t, uint64(30), newest[1].PriceUsd)

	all := s.Recent(100)
	require.Len(t, all, 3)

	// Mutating the returned slice must not affect the series.
	all[0].PriceUsd = 999
	require.Equal(t, uint64(10), s.Recent(0)[0].PriceUsd)
}

func TestPriceSeriesStats(t *testing.T) {
	s := NewPriceSeries(10)
	s.Append(seriesPoint(0, 1_000_000))
	s.Append(seriesPoint(1, 990_000))
	s.Append(seriesPoint(2, 1_020_000))

	stats := s.Stats()
	require.Equal(t, 3, stats.Count)
	require.Equal(t, uint64(990_000), stats.MinUsd)
	require.Equal(t, uint64(1_020_000), stats.MaxUsd)
	require.Equal(t, uint64(1_003_333), stats.AvgUsd)
	require.InDelta(t, 2.0, stats.ChangePercent, 0.011)
	require.Equal(t, uint64(1_000_000), stats.First.PriceUsd)
	require.Equal(t, uint64(1_020_000), stats.Last.PriceUsd)
}

func TestPriceSeriesEmptyStats(t *testing.T) {
	s := NewPriceSeries(4)
	stats := s.Stats()
	require.Zero(t, stats.Count)
	require.Zero(t, stats.MinUsd)
	require.Zero(t, stats.MaxUsd)
	require.Zero(t, stats.AvgUsd)
	require.Zero(t, stats.ChangePercent)
}
