package chain

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Chain Service Pipeline's Prometheus instruments:
// channel depth, per-stage latency, and outcome counters, registered
// once per Controller so multiple nodes in a test process don't
// collide on the default registry.
type Metrics struct {
	BlocksProcessed   *prometheus.CounterVec
	VerifyDuration    prometheus.Histogram
	PreloadQueueDepth prometheus.Gauge
	VerifyQueueDepth  prometheus.Gauge
	OrphanPoolSize    prometheus.Gauge
	ReorgsTotal       prometheus.Counter
	ReorgDepth        prometheus.Histogram
	BestTipNumber     prometheus.Gauge
}

// NewMetrics constructs and registers a fresh Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "blocks_processed_total",
			Help:      "Blocks the Chain Service pipeline has finished processing, by outcome.",
		}, []string{"outcome"}),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "verify_duration_seconds",
			Help:      "Time spent in contextual verification per block.",
			Buckets:   prometheus.DefBuckets,
		}),
		PreloadQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "preload_queue_depth",
			Help:      "Current depth of the preload channel.",
		}),
		VerifyQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "verify_queue_depth",
			Help:      "Current depth of the unverified_block channel.",
		}),
		OrphanPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "orphan_pool_size",
			Help:      "Number of blocks currently parked in the orphan pool.",
		}),
		ReorgsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "reorgs_total",
			Help:      "Number of completed chain reorganisations.",
		}),
		ReorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "reorg_depth_blocks",
			Help:      "Number of blocks detached per reorganisation.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		BestTipNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ckbcore",
			Subsystem: "chain",
			Name:      "best_tip_number",
			Help:      "Block number of the current best chain tip.",
		}),
	}

	reg.MustRegister(
		m.BlocksProcessed,
		m.VerifyDuration,
		m.PreloadQueueDepth,
		m.VerifyQueueDepth,
		m.OrphanPoolSize,
		m.ReorgsTotal,
		m.ReorgDepth,
		m.BestTipNumber,
	)
	return m
}
