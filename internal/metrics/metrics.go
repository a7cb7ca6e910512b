// Package metrics defines the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qr_attendance"

var (
	// CheckIns counts attendance submissions by outcome
	// (checked_in, updated, rejected_expired, rejected_invalid,
	// rejected_device, rejected_duplicate, rejected_validation, error).
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkins_total",
		Help:      "Attendance submissions by outcome.",
	}, []string{"outcome"})

	// SessionsCreated counts sessions created.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Sessions created.",
	})

	// TokensRenewed counts session token renewals.
	TokensRenewed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_renewed_total",
		Help:      "Session tokens renewed.",
	})

	// SessionsCleared counts attendance clears.
	SessionsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_cleared_total",
		Help:      "Session attendance clears.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
