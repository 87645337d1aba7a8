// ==================================
// File: internal/monitor/series.go
// ==================================
package monitor

import (
	"math"
	"sync"
	"time"
)

const defaultMaxPoints = 720

// Point is one observed spot price.
type Point struct {
	Time     time.Time
	PriceUsd uint64
}

// PriceSeries keeps the most recent observations in a bounded buffer.
type PriceSeries struct {
	mu        sync.RWMutex
	points    []Point
	maxPoints int
}

// NewPriceSeries creates a series holding up to maxPoints entries.
func NewPriceSeries(maxPoints int) *PriceSeries {
	if maxPoints <= 0 {
		maxPoints = defaultMaxPoints
	}
	return &PriceSeries{
		points:    make([]Point, 0, maxPoints),
		maxPoints: maxPoints,
	}
}

// Append records a new observation, dropping the oldest when full.
func (s *PriceSeries) Append(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.points) >= s.maxPoints {
		s.points = s.points[1:]
	}
	s.points = append(s.points, p)
}

// Recent returns up to limit observations, oldest first. A non-positive
// limit returns everything buffered.
func (s *PriceSeries) Recent(limit int) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.points) {
		limit = len(s.points)
	}

	start := len(s.points) - limit
	result := make([]Point, limit)
	copy(result, s.points[start:])

	return result
}

// Len reports how many observations are buffered.
func (s *PriceSeries) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// SeriesStats summarizes the buffered observations.
type SeriesStats struct {
	Count         int     `json:"count"`
	MinUsd        uint64  `json:"min_usd"`
	MaxUsd        uint64  `json:"max_usd"`
	AvgUsd        uint64  `json:"avg_usd"`
	ChangePercent float64 `json:"change_percent"`
	First         Point   `json:"first"`
	Last          Point   `json:"last"`
}

// Stats computes min/max/avg and the percent change from the first to
// the newest observation. An empty series yields a zero value.
func (s *PriceSeries) Stats() SeriesStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SeriesStats{Count: len(s.points)}
	if len(s.points) == 0 {
		return stats
	}

	stats.First = s.points[0]
	stats.Last = s.points[len(s.points)-1]
	stats.MinUsd = s.points[0].PriceUsd
	stats.MaxUsd = s.points[0].PriceUsd

	var sum uint64
	for _, p := range s.points {
		if p.PriceUsd < stats.MinUsd {
			stats.MinUsd = p.PriceUsd
		}
		if p.PriceUsd > stats.MaxUsd {
			stats.MaxUsd = p.PriceUsd
		}
		sum += p.PriceUsd
	}
	stats.AvgUsd = sum / uint64(len(s.points))

	if stats.First.PriceUsd > 0 {
		change := (float64(stats.Last.PriceUsd) - float64(stats.First.PriceUsd)) /
			float64(stats.First.PriceUsd) * 100
		stats.ChangePercent = math.Floor(change*100) / 100
	}

	return stats
}
