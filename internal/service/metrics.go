package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	ledgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
		[]string{"operation"},
	)

	withdrawalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_withdrawal_transitions_total",
			Help: "Withdrawal state transitions by resulting status",
		},
		[]string{"status"},
	)
)

func observe(op string, start time.Time, err error) {
	ledgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	ledgerOperations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsBusinessError(err):
		return "rejected"
	case errors.Is(err, ErrPlatformNotConfigured):
		return "misconfigured"
	default:
		return "error"
	}
}
