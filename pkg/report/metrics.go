package report

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/sasilab/sasi/pkg/types"
)

// Metric names written by WriteMetrics.
const (
	MetricScore       = "sasi_viability_score"
	MetricFactor      = "sasi_viability_factor"
	MetricState       = "sasi_viability_state"
	MetricEvaluations = "sasi_viability_evaluations_total"
)

var knownStates = []string{"STABLE", "WARNING", "FRAGILE", "STRUCTURAL_COLLAPSE"}

// WriteMetrics writes the last record of a run as Prometheus text exposition.
// The state gauge is an enum: 1 for the final state, 0 for the others.
func WriteMetrics(w io.Writer, run string, records []types.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("report: no records for run %q", run)
	}
	last := records[len(records)-1]
	runLabel := label("run", run)

	score := family(MetricScore, "Final viability score of the run.", dto.MetricType_GAUGE,
		gauge(last.V, runLabel))

	var factors []*dto.Metric
	for _, f := range []struct {
		name string
		v    *float64
	}{{"A", last.A}, {"E", &last.E}, {"R", last.R}} {
		if f.v == nil {
			continue
		}
		factors = append(factors, gauge(*f.v, runLabel, label("factor", f.name)))
	}
	factor := family(MetricFactor, "Final input factors of the run.", dto.MetricType_GAUGE, factors...)

	states := make([]*dto.Metric, 0, len(knownStates))
	for _, s := range knownStates {
		v := 0.0
		if s == last.State {
			v = 1
		}
		states = append(states, gauge(v, runLabel, label("state", s)))
	}
	state := family(MetricState, "Final classification of the run (1 = current).", dto.MetricType_GAUGE, states...)

	evals := family(MetricEvaluations, "Evaluations appended to the run history.", dto.MetricType_COUNTER,
		&dto.Metric{
			Label:   []*dto.LabelPair{runLabel},
			Counter: &dto.Counter{Value: proto.Float64(float64(len(records)))},
		})

	for _, mf := range []*dto.MetricFamily{score, factor, state, evals} {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("report: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ParseMetrics parses text exposition written by WriteMetrics.
func ParseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("report: parse metrics: %w", err)
	}
	return mfs, nil
}

func family(name, help string, t dto.MetricType, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   t.Enum(),
		Metric: metrics,
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
