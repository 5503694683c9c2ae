package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus counters.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignments  *prometheus.CounterVec
	competitions *prometheus.CounterVec
	rollbacks    prometheus.Counter
	rebuilds     prometheus.Counter
	swept        prometheus.Counter
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed Collector.
//
// reg defaults to prometheus.DefaultRegisterer; namespace defaults to
// "worksets". Metric registration is deferred to first use so constructing a
// collector in tests never double-registers.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "worksets"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (c *PrometheusCollector) init() {
	c.once.Do(func() {
		c.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "assignments_total",
			Help:      "Terminal outcomes of workset assignment requests.",
		}, []string{"result"})
		c.competitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "lock_competitions_total",
			Help:      "Lock competitions entered, by outcome.",
		}, []string{"outcome"})
		c.rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "commit_rollbacks_total",
			Help:      "Compensating rollbacks performed during assignment commit.",
		})
		c.rebuilds = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "ledger_rebuilds_total",
			Help:      "Full regenerations of the usage ledger from task records.",
		})
		c.swept = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "expired_locks_swept_total",
			Help:      "Expired formal locks removed by sweeps.",
		})
		c.reg.MustRegister(c.assignments, c.competitions, c.rollbacks, c.rebuilds, c.swept)
	})
}

// AssignmentResult implements Collector.
func (c *PrometheusCollector) AssignmentResult(result string) {
	c.init()
	c.assignments.WithLabelValues(result).Inc()
}

// CompetitionOutcome implements Collector.
func (c *PrometheusCollector) CompetitionOutcome(outcome string) {
	c.init()
	c.competitions.WithLabelValues(outcome).Inc()
}

// Rollback implements Collector.
func (c *PrometheusCollector) Rollback() {
	c.init()
	c.rollbacks.Inc()
}

// LedgerRebuild implements Collector.
func (c *PrometheusCollector) LedgerRebuild() {
	c.init()
	c.rebuilds.Inc()
}

// LocksSwept implements Collector.
func (c *PrometheusCollector) LocksSwept(n int) {
	c.init()
	c.swept.Add(float64(n))
}
