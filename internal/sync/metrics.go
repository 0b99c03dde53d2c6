package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass outcome label values.
const (
	outcomeOK          = "ok"
	outcomeNotModified = "not_modified"
	outcomeError       = "error"
	outcomeDropped     = "dropped"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	passes       *prometheus.CounterVec
	newItems     prometheus.Counter
	passDuration prometheus.Histogram
	markRead     *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octobar_passes_total",
			Help: "Reconciliation passes by outcome.",
		}, []string{"outcome"}),
		newItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octobar_new_items_total",
			Help: "Notification threads seen for the first time.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "octobar_pass_duration_seconds",
			Help:    "Wall time of reconciliation passes.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		markRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octobar_mark_read_total",
			Help: "Remote mark-read calls by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.passes, m.newItems, m.passDuration, m.markRead)
	}
	return m
}

func (m *Metrics) observePass(outcome string, newItems int, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
	if newItems > 0 {
		m.newItems.Add(float64(newItems))
	}
	if outcome != outcomeDropped {
		m.passDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeMarkRead(err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.markRead.WithLabelValues(outcome).Inc()
}
