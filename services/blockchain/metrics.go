package blockchain

import (
	"sync"

	"github.com/halocoin/halominer/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockchainBlocksAccepted prometheus.Counter
	prometheusBlockchainBlocksRejected prometheus.Counter
	prometheusBlockchainQueueDepth     prometheus.Gauge
	prometheusBlockchainTxPoolSize     prometheus.Gauge
	prometheusBlockchainProcessBlock   prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockchainBlocksAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "blockchain",
			Name:      "blocks_accepted",
			Help:      "Number of submitted blocks appended to the chain",
		},
	)

	prometheusBlockchainBlocksRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "halominer",
			Subsystem: "blockchain",
			Name:      "blocks_rejected",
			Help:      "Number of submitted blocks that failed linkage, target or storage checks",
		},
	)

	prometheusBlockchainQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "halominer",
			Subsystem: "blockchain",
			Name:      "queue_depth",
			Help:      "Number of submitted blocks waiting to be processed",
		},
	)

	prometheusBlockchainTxPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "halominer",
			Subsystem: "blockchain",
			Name:      "tx_pool_size",
			Help:      "Number of pending transactions",
		},
	)

	prometheusBlockchainProcessBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "halominer",
			Subsystem: "blockchain",
			Name:      "process_block",
			Help:      "Duration of validating and storing a block",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
