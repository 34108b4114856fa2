package report

import (
	"bytes"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestWriteMetrics_ParsesBack(t *testing.T) {
	recs := FromHistory(mSweep(t), Options{})

	var buf bytes.Buffer
	if err := WriteMetrics(&buf, "m-sweep", recs); err != nil {
		t.Fatalf("WriteMetrics() error = %v", err)
	}

	mfs, err := ParseMetrics(&buf)
	if err != nil {
		t.Fatalf("ParseMetrics() error = %v\n%s", err, buf.String())
	}

	score := mfs[MetricScore]
	if score == nil || len(score.GetMetric()) != 1 {
		t.Fatalf("missing %s", MetricScore)
	}
	last := recs[len(recs)-1]
	if got := score.GetMetric()[0].GetGauge().GetValue(); got != last.V {
		t.Errorf("score = %v, want %v", got, last.V)
	}
	if got := labelValue(score.GetMetric()[0], "run"); got != "m-sweep" {
		t.Errorf("run label = %q, want m-sweep", got)
	}

	factors := map[string]float64{}
	for _, m := range mfs[MetricFactor].GetMetric() {
		factors[labelValue(m, "factor")] = m.GetGauge().GetValue()
	}
	want := map[string]float64{"A": 0.9, "E": 0.1, "R": 0.9}
	for k, v := range want {
		if !almostEqual(factors[k], v) {
			t.Errorf("factor %s = %v, want %v", k, factors[k], v)
		}
	}

	var active []string
	for _, m := range mfs[MetricState].GetMetric() {
		if m.GetGauge().GetValue() == 1 {
			active = append(active, labelValue(m, "state"))
		}
	}
	if len(active) != 1 || active[0] != "STRUCTURAL_COLLAPSE" {
		t.Errorf("active states = %v, want [STRUCTURAL_COLLAPSE]", active)
	}

	evals := mfs[MetricEvaluations]
	if evals.GetType() != dto.MetricType_COUNTER {
		t.Errorf("%s type = %v, want COUNTER", MetricEvaluations, evals.GetType())
	}
	if got := evals.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("evaluations = %v, want 3", got)
	}
}

func TestWriteMetrics_SimpleHasOnlyE(t *testing.T) {
	recs := FromHistory(simpleHistory(t), Options{})
	var buf bytes.Buffer
	if err := WriteMetrics(&buf, "stable", recs); err != nil {
		t.Fatalf("WriteMetrics() error = %v", err)
	}
	mfs, err := ParseMetrics(&buf)
	if err != nil {
		t.Fatalf("ParseMetrics() error = %v", err)
	}
	if n := len(mfs[MetricFactor].GetMetric()); n != 1 {
		t.Errorf("factor series = %d, want 1 (E only)", n)
	}
}

func TestWriteMetrics_Empty(t *testing.T) {
	if err := WriteMetrics(&bytes.Buffer{}, "x", nil); err == nil {
		t.Error("expected error for empty records")
	}
}
