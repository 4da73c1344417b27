package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedbackSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "evalo",
		Name:      "feedback_submissions_total",
		Help:      "Accepted anonymous feedback submissions, by tone",
	}, []string{"tone"})

	classifierFailures = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "evalo",
		Name:      "classifier_failures_total",
		Help:      "Submissions rejected because the sentiment service was unavailable",
	})

	driftCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "evalo",
		Name:      "counter_drift_corrections_total",
		Help:      "Event counter corrections written by reconciliation",
	})
)
