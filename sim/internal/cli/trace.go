package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/viability"
)

func printScheduleHeader(w io.Writer, name string, r *runner.Runner, s runner.Schedule) {
	fmt.Fprintf(w, "== schedule %s (%s, %d steps, E0=%s)\n", name, r.Model().Variant, s.Steps, num(s.Initial))
}

func printTraces(w io.Writer, traces []runner.StepTrace, s runner.Schedule) {
	for _, tr := range traces {
		places := report.PrecisionFor(tr.Result.Model.Variant)
		fmt.Fprintf(w, "step %d  E=%s  V=%s  %s%s\n",
			tr.Step+1,
			num(tr.Result.Input.E),
			strconv.FormatFloat(tr.Result.Score, 'f', places, 64),
			tr.Result.State,
			actions(tr.Decisions))
		for _, m := range s.Mutations {
			if m.AtStep == tr.Step {
				fmt.Fprintf(w, "  ! human effectiveness forced to %s\n", num(viability.Clamp01(m.Effectiveness)))
			}
		}
	}
}

func actions(ds []agents.Decision) string {
	var out string
	for _, d := range ds {
		out += fmt.Sprintf("  %s=%s", d.Agent, d.Action)
	}
	return out
}

func printSweep(w io.Writer, name string, h runner.History) {
	if len(h) == 0 {
		return
	}
	fmt.Fprintf(w, "== sweep %s (%s)\n", name, h[0].Probe.Field)
	for _, r := range h {
		fmt.Fprintf(w, "%s=%s  V=%.4f  %s\n", r.Probe.Field, num(r.Probe.Value), r.Score, r.State)
	}
}

func printFixed(w io.Writer, name string, h runner.History) {
	fmt.Fprintf(w, "== scenario %s\n", name)
	for i, r := range h {
		fmt.Fprintf(w, "%d  A=%s  E=%s  R=%s  V=%.4f  %s\n",
			i+1, num(r.Input.A), num(r.Input.E), num(r.Input.R), r.Score, r.State)
	}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
