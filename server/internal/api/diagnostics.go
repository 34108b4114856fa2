package api

import (
	"fmt"
	"math"
	"sort"

	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/types"
	"github.com/sasilab/sasi/pkg/viability"
	"github.com/sasilab/sasi/server/internal/store"
)

// Hint levels, most severe first.
const (
	levelCritical = "critical"
	levelWarning  = "warning"
	levelInfo     = "info"
	levelOK       = "ok"
)

// boundaryMargin is how close V must be to a cut point to be called out.
const boundaryMargin = 0.01

// DiagnosticHint is one human-readable insight about a run.
// A client displays these as chips on the run card; Detail explains the
// finding in plain English.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a run's records.
// Hints are ordered critical first, then warnings, then info, then ok.
func computeDiagnostics(run *store.Run) []DiagnosticHint {
	if len(run.Records) == 0 {
		return []DiagnosticHint{}
	}
	var hints []DiagnosticHint
	final := run.Final
	th := thresholdsFor(run.Variant)

	// ── Collapse ─────────────────────────────────────────────────────────────
	if first := firstCollapse(run.Records); first >= 0 {
		v := final.V
		level, title := levelCritical, "Structural collapse"
		detail := fmt.Sprintf(
			"Viability fell to the collapse tier at record %d (V=%g). "+
				"Below %g the system keeps producing output but human oversight no longer "+
				"holds it together.", first, run.Records[first].V, th.Lower)
		if viability.State(final.State) != viability.StateStructuralCollapse {
			level, title = levelWarning, "Recovered from collapse"
			detail += fmt.Sprintf(" It ended the run in %s.", final.State)
		}
		hints = append(hints, DiagnosticHint{Key: "structural_collapse", Level: level, Title: title, Detail: detail, Value: &v})
	}

	// ── Zero effectiveness ───────────────────────────────────────────────────
	for i, rec := range run.Records {
		if rec.E <= 0 {
			hints = append(hints, DiagnosticHint{
				Key:   "zero_effectiveness",
				Level: levelCritical,
				Title: "No human effectiveness",
				Detail: fmt.Sprintf(
					"Human effectiveness reached zero at record %d. "+
						"With E at zero, V is zero no matter how productive the system is.", i),
			})
			break
		}
	}

	// ── Middle tier ──────────────────────────────────────────────────────────
	switch viability.State(final.State) {
	case viability.StateFragile, viability.StateWarning:
		v := final.V
		hints = append(hints, DiagnosticHint{
			Key:   "middle_tier",
			Level: levelWarning,
			Title: titleCase(final.State),
			Detail: fmt.Sprintf(
				"The run ended with V=%g, above the collapse cut of %g but below the stable cut of %g. "+
					"Raising human effectiveness moves V fastest.", final.V, th.Lower, th.Stable),
			Value: &v,
		})
	}

	// ── Effectiveness drops ──────────────────────────────────────────────────
	if run.Kind != store.KindSweep {
		for i := 1; i < len(run.Records); i++ {
			prev, cur := run.Records[i-1], run.Records[i]
			if cur.E >= prev.E {
				continue
			}
			drop := prev.E - cur.E
			hints = append(hints, DiagnosticHint{
				Key:   fmt.Sprintf("effectiveness_drop_%d", i),
				Level: levelWarning,
				Title: fmt.Sprintf("E dropped at step %d", i),
				Detail: fmt.Sprintf(
					"Human effectiveness fell from %g to %g between steps %d and %d; "+
						"V went from %g to %g.", prev.E, cur.E, i-1, i, prev.V, cur.V),
				Value: &drop,
			})
		}
	}

	// ── Sweep crossings ──────────────────────────────────────────────────────
	if run.Kind == store.KindSweep {
		for i := 1; i < len(run.Records); i++ {
			prev, cur := run.Records[i-1], run.Records[i]
			if prev.State == cur.State {
				continue
			}
			at, ok := probeValue(run.Probe, cur)
			label := fmt.Sprintf("probe %d", i)
			if ok {
				label = fmt.Sprintf("%s=%g", run.Probe, at)
			}
			hint := DiagnosticHint{
				Key:   fmt.Sprintf("state_crossing_%d", i),
				Level: levelInfo,
				Title: fmt.Sprintf("%s → %s", prev.State, cur.State),
				Detail: fmt.Sprintf(
					"The state changed from %s to %s at %s (V=%g). "+
						"This is where the swept value tips the system into a new tier.",
					prev.State, cur.State, label, cur.V),
			}
			if ok {
				hint.Value = &at
			}
			hints = append(hints, hint)
		}
	}

	// ── Near a tier boundary ─────────────────────────────────────────────────
	for _, cut := range []float64{th.Stable, th.Lower} {
		if d := math.Abs(final.V - cut); d <= boundaryMargin {
			v := final.V
			hints = append(hints, DiagnosticHint{
				Key:   "near_boundary",
				Level: levelInfo,
				Title: fmt.Sprintf("Near the %g cut", cut),
				Detail: fmt.Sprintf(
					"Final V=%g is within %g of the %g cut point. "+
						"A small change in any factor will change the state.", final.V, boundaryMargin, cut),
				Value: &v,
			})
			break
		}
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		v := final.V
		hints = append(hints, DiagnosticHint{
			Key:   "viable",
			Level: levelOK,
			Title: "Viable",
			Detail: fmt.Sprintf(
				"The run ended %s with V=%g, clear of every cut point, "+
					"and no record reached the collapse tier.", final.State, final.V),
			Value: &v,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank(hints[i].Level) < levelRank(hints[j].Level)
	})
	return hints
}

func levelRank(level string) int {
	switch level {
	case levelCritical:
		return 0
	case levelWarning:
		return 1
	case levelInfo:
		return 2
	default:
		return 3
	}
}

func thresholdsFor(variant string) viability.Thresholds {
	return viability.Model{Variant: viability.Variant(variant)}.Thresholds()
}

// firstCollapse returns the index of the first collapsed record, or -1.
func firstCollapse(recs []types.Record) int {
	for i, r := range recs {
		if viability.State(r.State).Collapsed() {
			return i
		}
	}
	return -1
}

// probeValue reads the swept field back out of a record.
func probeValue(field string, rec types.Record) (float64, bool) {
	var p *float64
	switch field {
	case runner.FieldE:
		return rec.E, true
	case runner.FieldA:
		p = rec.A
	case runner.FieldR:
		p = rec.R
	case runner.FieldK:
		p = rec.K
	case runner.FieldM:
		p = rec.M
	case runner.FieldOmega:
		p = rec.Omega
	case runner.FieldP:
		p = rec.P
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

func titleCase(state string) string {
	switch viability.State(state) {
	case viability.StateFragile:
		return "Fragile"
	case viability.StateWarning:
		return "Warning"
	default:
		return state
	}
}
