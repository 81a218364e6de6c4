package setup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepTotal counts finished steps by outcome
	stepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortexstage_step_total",
		Help: "Setup steps by step name and status",
	}, []string{"step", "status"})

	// stepDuration tracks how long each step takes, statements included
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cortexstage_step_duration_seconds",
		Help:    "Setup step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
	}, []string{"step"})

	// statementTotal counts statements sent to Snowflake by outcome
	statementTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortexstage_statements_total",
		Help: "Snowflake statements executed by status",
	}, []string{"status"})
)
