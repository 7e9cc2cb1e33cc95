package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersSettled counts validator outcomes per order (accepted, rejected, malformed)
var OrdersSettled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "aban_orders_settled_total",
		Help: "Total number of queued order requests evaluated by the batch validator",
	},
	[]string{"result"},
)

// JobRuns counts scheduled job runs by job name and outcome (ok, failed)
var JobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "aban_job_runs_total",
		Help: "Total number of settlement job runs",
	},
	[]string{"job", "outcome"},
)

// JobLatency records how long each job run took
var JobLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "aban_job_duration_seconds",
		Help:    "Duration of settlement job runs in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"job"},
)

// Consolidation metrics
var (
	OrdersArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aban_orders_archived_total",
			Help: "Total number of live orders consolidated into the archive",
		},
	)

	TokensCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aban_tokens_credited_total",
			Help: "Total number of tokens credited by the order filler",
		},
	)
)

// QueueDepth reports the intake queue length observed at the last health check
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "aban_intake_queue_depth",
		Help: "Number of order requests waiting in the intake queue",
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aban_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aban_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aban_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(OrdersSettled, JobRuns, JobLatency)
	prometheus.MustRegister(OrdersArchived, TokensCredited, QueueDepth)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
