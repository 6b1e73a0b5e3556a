package poimport

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for import batches. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	groups      *prometheus.CounterVec
	autoCreated *prometheus.CounterVec
	duration    prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers the collectors. A nil registerer uses the default
// Prometheus registerer exactly once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partsdesk_poimport_groups_total",
			Help: "PO groups processed by outcome.",
		}, []string{"outcome"}),
		autoCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partsdesk_poimport_autocreated_total",
			Help: "Master data records created by the importer.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "partsdesk_poimport_batch_duration_seconds",
			Help:    "Wall time of import batches.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	registerer.MustRegister(m.groups, m.autoCreated, m.duration)
	return m
}

func (m *Metrics) observeOutcome(o GroupOutcome) {
	if m == nil {
		return
	}
	m.groups.WithLabelValues(string(o.Action)).Inc()
	if o.CreatedVendor != nil {
		m.autoCreated.WithLabelValues("vendor").Inc()
	}
	if n := len(o.CreatedParts); n > 0 {
		m.autoCreated.WithLabelValues("part").Add(float64(n))
	}
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.groups.WithLabelValues("failed").Inc()
}

func (m *Metrics) observeBatch(start time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
}
