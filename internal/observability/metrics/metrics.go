package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the contact form.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	relayLatency     *prometheus.HistogramVec
	pageViews        *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beautylab",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Contact form submissions by outcome",
		}, []string{"outcome", "service"}),
		relayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beautylab",
			Subsystem: "leads",
			Name:      "relay_latency_seconds",
			Help:      "Latency of form relay calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beautylab",
			Subsystem: "site",
			Name:      "page_views_total",
			Help:      "Rendered landing pages by theme",
		}, []string{"theme"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.relayLatency, m.pageViews)
	return m
}

// ObserveSubmission counts a Submit attempt. Outcomes that never reached the
// relay (invalid, in_flight) carry an empty service label.
func (m *LeadMetrics) ObserveSubmission(outcome, service string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome, service).Inc()
}

func (m *LeadMetrics) ObserveRelayLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.relayLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *LeadMetrics) ObservePageView(theme string) {
	if m == nil {
		return
	}
	m.pageViews.WithLabelValues(theme).Inc()
}
