// internal/metrics/collector.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType identifies one registered metric family.
type MetricType string

const (
	RPCDurationType     MetricType = "rpc_duration"
	RPCCounterType      MetricType = "rpc_counter"
	BatchSizeType       MetricType = "batch_size"
	CacheEventsType     MetricType = "cache_events"
	RouteCounterType    MetricType = "route_counter"
	RouteDurationType   MetricType = "route_duration"
	SamplesDroppedType  MetricType = "samples_dropped"
	DollarPriceType     MetricType = "dollar_price"
	CollateralRatioType MetricType = "collateral_ratio"
)

// Collector owns the metric families for the routing engine.
type Collector struct {
	metrics sync.Map
}

// NewCollector registers the metric families and returns the collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		RPCDurationType:     rpcDuration,
		RPCCounterType:      rpcCounter,
		BatchSizeType:       batchSize,
		CacheEventsType:     cacheEvents,
		RouteCounterType:    routeCounter,
		RouteDurationType:   routeDuration,
		SamplesDroppedType:  samplesDropped,
		DollarPriceType:     dollarPrice,
		CollateralRatioType: collateralRatio,
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		if err := prometheus.Register(metric); err != nil {
			// Re-registration happens when several collectors share a
			// process (tests); the existing family keeps serving.
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// Reset clears every vector metric (useful in tests).
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// RecordRPC records one chain read with its outcome.
func (c *Collector) RecordRPC(method string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	rpcCounter.WithLabelValues(method, status).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordBatch records the size of one multiplexed JSON-RPC request.
func (c *Collector) RecordBatch(kind string, size int) {
	if c == nil {
		return
	}
	batchSize.WithLabelValues(kind).Observe(float64(size))
}

// RecordCacheHit marks a cache hit for the named cache.
func (c *Collector) RecordCacheHit(cache string) {
	if c == nil {
		return
	}
	cacheEvents.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss marks a cache miss for the named cache.
func (c *Collector) RecordCacheMiss(cache string) {
	if c == nil {
		return
	}
	cacheEvents.WithLabelValues(cache, "miss").Inc()
}

// RecordRoute records a completed route selection.
func (c *Collector) RecordRoute(direction, route string, duration time.Duration) {
	if c == nil {
		return
	}
	routeCounter.WithLabelValues(direction, route).Inc()
	routeDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// RecordSampleDropped counts a history sample lost to a failed or
// missing batch sub-response.
func (c *Collector) RecordSampleDropped(reason string) {
	if c == nil {
		return
	}
	samplesDropped.WithLabelValues(reason).Inc()
}

// SetDollarPrice publishes the latest dollar price from a source.
func (c *Collector) SetDollarPrice(source string, usdScaled uint64) {
	if c == nil {
		return
	}
	dollarPrice.WithLabelValues(source).Set(float64(usdScaled) / 1e6)
}

// SetCollateralRatio publishes the latest collateral ratio.
func (c *Collector) SetCollateralRatio(usdScaled uint64) {
	if c == nil {
		return
	}
	collateralRatio.Set(float64(usdScaled) / 1e6)
}

var (
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uusd_router",
			Name:      "rpc_request_duration_seconds",
			Help:      "Chain read latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method"},
	)

	rpcCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uusd_router",
			Name:      "rpc_requests_total",
			Help:      "Total chain reads by method and outcome",
		},
		[]string{"method", "status"},
	)

	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uusd_router",
			Name:      "batch_request_size",
			Help:      "Sub-request count per multiplexed JSON-RPC call",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 8),
		},
		[]string{"kind"},
	)

	cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uusd_router",
			Name:      "cache_events_total",
			Help:      "Cache hits and misses by cache name",
		},
		[]string{"cache", "event"},
	)

	routeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uusd_router",
			Name:      "routes_selected_total",
			Help:      "Optimal route selections by direction and route",
		},
		[]string{"direction", "route"},
	)

	routeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uusd_router",
			Name:      "route_duration_seconds",
			Help:      "End-to-end route calculation time",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"direction"},
	)

	samplesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uusd_router",
			Name:      "history_samples_dropped_total",
			Help:      "History samples lost to errored or missing batch sub-responses",
		},
		[]string{"reason"},
	)

	dollarPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "uusd_router",
			Name:      "dollar_price_usd",
			Help:      "Latest dollar price by source",
		},
		[]string{"source"},
	)

	collateralRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uusd_router",
			Name:      "collateral_ratio",
			Help:      "Current protocol collateral ratio",
		},
	)
)
