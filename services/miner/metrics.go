package miner

import (
	"sync"

	"github.com/halocoin/halominer/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockMined        prometheus.Histogram
	prometheusMinerSubmitted    prometheus.Counter
	prometheusMinerSubmitErrors prometheus.Counter
	prometheusMinerRestarts     *prometheus.CounterVec
	prometheusMinerGenerations  prometheus.Counter
	prometheusMinerHashes       prometheus.Counter
	prometheusMinerWorkerPanics prometheus.Counter
	prometheusMinerState        *prometheus.GaugeVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockMined = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "block_mined",
			Help:      "Histogram of the time from candidate to solved block",
			Buckets:   util.MetricsBucketsSeconds,
		},
	)

	prometheusMinerSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "blocks_submitted",
			Help:      "Number of solved blocks handed to the chain service",
		},
	)

	prometheusMinerSubmitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "submit_errors",
			Help:      "Number of solved blocks the chain service did not take",
		},
	)

	prometheusMinerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "restarts",
			Help:      "Number of search rounds abandoned before a solution, by reason",
		},
		[]string{"reason"},
	)

	prometheusMinerGenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "generations",
			Help:      "Number of worker generations started",
		},
	)

	prometheusMinerHashes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "hashes",
			Help:      "Number of proof of work hashes computed by pool workers",
		},
	)

	prometheusMinerWorkerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "worker_panics",
			Help:      "Number of pool workers that panicked",
		},
	)

	prometheusMinerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "halominer",
			Subsystem: "miner",
			Name:      "state",
			Help:      "1 for the current coordinator state, 0 for the others",
		},
		[]string{"state"},
	)
}
