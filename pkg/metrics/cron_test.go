package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsPartitionsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)

	metrics.ObserveDuration("auto-confirm", 250*time.Millisecond)
	metrics.IncSuccess("auto-confirm")
	metrics.IncSuccess("auto-confirm")
	metrics.IncFailure("auto-confirm")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterValue(mfs, "bata_cron_job_runs_total", map[string]string{"job": "auto-confirm", "outcome": "success"}); got != 2 {
		t.Fatalf("expected 2 successes got %f", got)
	}
	if got := counterValue(mfs, "bata_cron_job_runs_total", map[string]string{"job": "auto-confirm", "outcome": "failure"}); got != 1 {
		t.Fatalf("expected 1 failure got %f", got)
	}
	if got := histogramSum(mfs, "bata_cron_job_duration_seconds", "auto-confirm"); got <= 0 {
		t.Fatalf("expected duration sum > 0 got %f", got)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCronJobMetrics(nil)
	metrics.ObserveDuration("auto-confirm", time.Second)
	metrics.IncSuccess("auto-confirm")
	metrics.IncFailure("auto-confirm")
}

func TestCronJobMetricsEmptyJobLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	metrics.IncSuccess("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterValue(mfs, "bata_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": "success"}); got != 1 {
		t.Fatalf("expected unknown label fallback got %f", got)
	}
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func histogramSum(mfs []*dto.MetricFamily, name, job string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric.GetLabel(), map[string]string{"job": job}) {
				return metric.GetHistogram().GetSampleSum()
			}
		}
	}
	return -1
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	got := map[string]string{}
	for _, pair := range pairs {
		got[pair.GetName()] = pair.GetValue()
	}
	for name, value := range want {
		if got[name] != value {
			return false
		}
	}
	return true
}
