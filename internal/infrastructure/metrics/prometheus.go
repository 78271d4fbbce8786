package metrics

import (
	"net/http"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depositd"

type Collector struct {
	registry *prometheus.Registry

	size             *prometheus.GaugeVec
	entries          *prometheus.GaugeVec
	fullAmount       *prometheus.GaugeVec
	blocksPushed     prometheus.Counter
	blocksPopped     prometheus.Counter
	rollbacks        prometheus.Counter
	checkpoints      *prometheus.CounterVec
	checkpointTime   prometheus.Histogram
	checkpointLength prometheus.Gauge
}

// NewCollector registers the deposit index metrics, together with the go
// runtime and process collectors, on a dedicated registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		size: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_blocks",
			Help:      "Number of blocks covered by the deposit index.",
		}, []string{"index"}),
		entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Number of stored change points.",
		}, []string{"index"}),
		fullAmount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_full_amount",
			Help:      "Deposit amount at the tip of the index, in atomic units.",
		}, []string{"index"}),
		blocksPushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_pushed_total",
			Help:      "Blocks appended to the index.",
		}),
		blocksPopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_popped_total",
			Help:      "Blocks removed from the index by disconnects and rollbacks.",
		}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Rollback requests that removed at least one block.",
		}),
		checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoints by outcome.",
		}, []string{"status"}),
		checkpointTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Time spent persisting a snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		checkpointLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_bytes",
			Help:      "Size of the last persisted snapshot.",
		}),
	}
}

var _ ports.Metrics = (*Collector)(nil)

func (c *Collector) ObserveTip(tip domain.Tip) {
	c.size.WithLabelValues(tip.Name).Set(float64(tip.Size))
	c.entries.WithLabelValues(tip.Name).Set(float64(tip.Entries))
	c.fullAmount.WithLabelValues(tip.Name).Set(float64(tip.FullAmount))
}

func (c *Collector) IncBlocksPushed() {
	c.blocksPushed.Inc()
}

func (c *Collector) IncBlocksPopped(n uint32) {
	c.blocksPopped.Add(float64(n))
}

func (c *Collector) IncRollbacks() {
	c.rollbacks.Inc()
}

func (c *Collector) ObserveCheckpoint(seconds float64, size int, err error) {
	c.checkpointTime.Observe(seconds)
	if err != nil {
		c.checkpoints.WithLabelValues("failed").Inc()
		return
	}
	c.checkpoints.WithLabelValues("ok").Inc()
	c.checkpointLength.Set(float64(size))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: false,
	})
}
