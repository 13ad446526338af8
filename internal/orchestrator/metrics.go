package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	agentDuration   *prometheus.HistogramVec
	agentFailures   *prometheus.CounterVec
	workflowsActive prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when the orchestrator is instantiated
// multiple times (for example in unit tests).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided
// registerer. Callers needing unique metric names (tests) should supply a
// fresh registry. Registration errors panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	agentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dealflow",
			Subsystem: "orchestrator",
			Name:      "agent_duration_seconds",
			Help:      "Duration of each agent execution by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent", "status"},
	)
	agentFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealflow",
			Subsystem: "orchestrator",
			Name:      "agent_failures_total",
			Help:      "Total number of agent executions that returned a failure.",
		},
		[]string{"agent"},
	)
	workflowsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dealflow",
			Subsystem: "orchestrator",
			Name:      "workflows_active",
			Help:      "Number of named workflows currently executing.",
		},
	)

	collectors := []prometheus.Collector{agentDuration, agentFailures, workflowsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector.(type) {
				case *prometheus.HistogramVec:
					agentDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					agentFailures = already.ExistingCollector.(*prometheus.CounterVec)
				case prometheus.Gauge:
					workflowsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		agentDuration:   agentDuration,
		agentFailures:   agentFailures,
		workflowsActive: workflowsActive,
	}
}

// ObserveAgentDuration records the time spent in one agent execution.
func (m *Metrics) ObserveAgentDuration(agentID string, status string, duration time.Duration) {
	if m == nil || m.agentDuration == nil {
		return
	}
	m.agentDuration.WithLabelValues(agentID, status).Observe(duration.Seconds())
}

// IncAgentFailure increments the failure counter for the given agent.
func (m *Metrics) IncAgentFailure(agentID string) {
	if m == nil || m.agentFailures == nil {
		return
	}
	m.agentFailures.WithLabelValues(agentID).Inc()
}

// IncActiveWorkflows marks a workflow as started.
func (m *Metrics) IncActiveWorkflows() {
	if m == nil || m.workflowsActive == nil {
		return
	}
	m.workflowsActive.Inc()
}

// DecActiveWorkflows marks a workflow as finished.
func (m *Metrics) DecActiveWorkflows() {
	if m == nil || m.workflowsActive == nil {
		return
	}
	m.workflowsActive.Dec()
}
