package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineConstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmagate_engine_constructions_total",
			Help: "Engine construction attempts by engine and outcome",
		},
		[]string{"engine", "status"},
	)

	engineConstructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemmagate_engine_construction_duration_seconds",
			Help:    "Time spent constructing the translation engine",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"engine"},
	)

	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmagate_translation_requests_total",
			Help: "Translation requests by outcome (ok or failure reason)",
		},
		[]string{"outcome"},
	)

	translationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemmagate_translation_duration_seconds",
			Help:    "End-to-end resolver latency per request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func engineLabel(engine string) string {
	if engine == "" {
		return "auto"
	}
	return engine
}
