// Package metrics declares the Prometheus instruments of the board.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PositionWrites counts canvas position writes by item kind and result.
	PositionWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "growthlab_position_writes_total",
		Help: "Canvas position writes by item kind and result",
	}, []string{"kind", "result"})

	// Arrangements counts arrangement requests by outcome: applied,
	// partial, transport or busy.
	Arrangements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "growthlab_arrangements_total",
		Help: "Arrangement requests by outcome",
	}, []string{"outcome"})

	// ArrangementDuration times the external arrangement call.
	ArrangementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "growthlab_arrangement_duration_seconds",
		Help:    "Duration of calls to the arrangement service",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Conversions counts idea to feature conversions by outcome: converted,
	// invalid, create_failed or delete_failed.
	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "growthlab_conversions_total",
		Help: "Idea to feature conversions by outcome",
	}, []string{"outcome"})

	// StoreOps times store operations by operation name.
	StoreOps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "growthlab_store_operation_duration_seconds",
		Help:    "Duration of store operations",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"op"})

	// CanvasItems is the number of items on the canvas after the last load.
	CanvasItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "growthlab_canvas_items",
		Help: "Number of items on the canvas",
	})

	// HTTPRequests times API requests by route pattern and status code.
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "growthlab_http_request_duration_seconds",
		Help:    "Duration of HTTP API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
)

// Result turns an error into the result label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
