package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestLeadMetricsCountsSubmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)

	m.ObserveSubmission("succeeded", "brows")
	m.ObserveSubmission("succeeded", "brows")
	m.ObserveSubmission("transport_error", "lips")
	m.ObservePageView("studio")

	if got := counterValue(t, reg, "beautylab_leads_submissions_total", map[string]string{"outcome": "succeeded", "service": "brows"}); got != 2 {
		t.Fatalf("expected 2 succeeded submissions, got %v", got)
	}
	if got := counterValue(t, reg, "beautylab_leads_submissions_total", map[string]string{"outcome": "transport_error", "service": "lips"}); got != 1 {
		t.Fatalf("expected 1 transport error, got %v", got)
	}
	if got := counterValue(t, reg, "beautylab_site_page_views_total", map[string]string{"theme": "studio"}); got != 1 {
		t.Fatalf("expected 1 page view, got %v", got)
	}
}

func TestLeadMetricsRelayLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveRelayLatency("succeeded", 0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "beautylab_leads_relay_latency_seconds" {
			if count := family.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Fatalf("expected 1 sample, got %d", count)
			}
			return
		}
	}
	t.Fatal("relay latency histogram not registered")
}

func TestLeadMetricsNilSafe(t *testing.T) {
	var m *LeadMetrics
	m.ObserveSubmission("succeeded", "brows")
	m.ObserveRelayLatency("succeeded", 0.1)
	m.ObservePageView("lab")
}
