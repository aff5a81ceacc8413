package snapshot

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for snapshot resolution. A nil
// *Metrics records nothing.
type Metrics struct {
	attempts        *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the resolution metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolsnap_source_attempts_total",
			Help: "Snapshot attempts per provider, labeled by result.",
		}, []string{"source", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolsnap_fallbacks_total",
			Help: "Times the secondary provider was tried after the primary failed.",
		}, []string{"from", "to"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poolsnap_resolve_duration_seconds",
			Help:    "Time taken to resolve a full snapshot including base pools.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(m.attempts, m.fallbacks, m.resolveDuration)
	return m
}

func (m *Metrics) observeAttempt(source string, err error) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, result(err)).Inc()
}

func (m *Metrics) observeFallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *Metrics) observeResolve(start time.Time, err error) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
