package report

import (
	"time"

	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/types"
	"github.com/sasilab/sasi/pkg/viability"
)

// Rounding precision of exported records.
const (
	SimplePrecision      = 3
	SensitivityPrecision = 4
)

// PrecisionFor returns the rounding precision used for v's reports.
func PrecisionFor(v viability.Variant) int {
	if v == viability.VariantSimple {
		return SimplePrecision
	}
	return SensitivityPrecision
}

// Options controls how results become records.
type Options struct {
	// Places is the rounding precision. Zero selects PrecisionFor(variant).
	Places int

	// EconomicInfluence is attached to simple-form records when non-nil.
	EconomicInfluence *float64
}

// FromResult converts one result into an exported record.
func FromResult(r runner.Result, opts Options) types.Record {
	places := opts.Places
	if places == 0 {
		places = PrecisionFor(r.Model.Variant)
	}

	rec := types.Record{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		E:         viability.Round(r.Input.E, places),
		V:         viability.Round(r.Score, places),
		State:     string(r.State),
	}

	if r.Model.Variant == viability.VariantSimple {
		if opts.EconomicInfluence != nil {
			rec.EconomicInfluence = types.Float(*opts.EconomicInfluence)
		}
		return rec
	}

	p := r.Model.Params
	rec.A = types.Float(viability.Round(r.Input.A, places))
	rec.R = types.Float(viability.Round(r.Input.R, places))
	rec.K = types.Float(p.K)
	rec.M = types.Float(p.M)
	rec.Omega = types.Float(p.Omega)
	rec.P = types.Float(p.P)
	rec.StructuralCollapse = types.Bool(r.State.Collapsed())
	return rec
}

// FromHistory converts every result of h, preserving order.
func FromHistory(h runner.History, opts Options) []types.Record {
	out := make([]types.Record, 0, len(h))
	for _, r := range h {
		out = append(out, FromResult(r, opts))
	}
	return out
}

// Metadata describes a sensitivity report.
type Metadata struct {
	Description string `json:"descripcion"`
	Author      string `json:"autor"`
	Date        string `json:"fecha"`
}

// Sensitivity is the envelope written by the sensitivity analysis: an m
// sweep and an E sweep plus metadata.
type Sensitivity struct {
	AnalysisM []types.MPoint `json:"analisis_m"`
	AnalysisE []types.EPoint `json:"analisis_E"`
	Metadata  Metadata       `json:"metadata"`
}

// MPointFromResult converts one m-sweep result. The collapse flag follows the
// state tier, so it is set exactly when V <= 0.05.
func MPointFromResult(r runner.Result, places int) types.MPoint {
	return types.MPoint{
		M:                  r.Model.Params.M,
		V:                  viability.Round(r.Score, places),
		StructuralCollapse: r.State.Collapsed(),
		Timestamp:          r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// EPointFromResult converts one E-sweep result.
func EPointFromResult(r runner.Result, places int) types.EPoint {
	return types.EPoint{
		E:     viability.Round(r.Input.E, places),
		V:     viability.Round(r.Score, places),
		State: string(r.State),
	}
}

// NewSensitivity builds the envelope from the two sweep histories, stamping
// meta with now.
func NewSensitivity(mSweep, eSweep runner.History, meta Metadata, now time.Time) Sensitivity {
	meta.Date = now.UTC().Format(time.RFC3339Nano)
	s := Sensitivity{
		AnalysisM: make([]types.MPoint, 0, len(mSweep)),
		AnalysisE: make([]types.EPoint, 0, len(eSweep)),
		Metadata:  meta,
	}
	for _, r := range mSweep {
		s.AnalysisM = append(s.AnalysisM, MPointFromResult(r, SensitivityPrecision))
	}
	for _, r := range eSweep {
		s.AnalysisE = append(s.AnalysisE, EPointFromResult(r, SensitivityPrecision))
	}
	return s
}

// ERecords returns the E sweep as history records, for rendering and metrics.
func (s Sensitivity) ERecords() []types.Record {
	out := make([]types.Record, 0, len(s.AnalysisE))
	for _, p := range s.AnalysisE {
		out = append(out, p.Record())
	}
	return out
}
