package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fitsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmfit",
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "Fit jobs accepted, by model.",
		},
		[]string{"model"},
	)

	fitsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmfit",
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Fit jobs that reached a terminal state, by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	fitsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lmfit",
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Fit jobs currently holding a worker slot.",
		},
	)

	fitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lmfit",
			Subsystem: "fit",
			Name:      "duration_seconds",
			Help:      "Wall time of a fit, excluding time queued for a worker.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"model"},
	)

	fitEvaluations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lmfit",
			Subsystem: "fit",
			Name:      "evaluations",
			Help:      "Residual evaluations per completed fit.",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
		},
		[]string{"model"},
	)
)
