package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/viability"
)

var (
	evalFlags      modelFlags
	flagEvalFormat string
)

type evaluation struct {
	Variant     viability.Variant `json:"variant"`
	Input       viability.Input   `json:"input"`
	V           float64           `json:"V"`
	State       viability.State   `json:"state"`
	Numerator   float64           `json:"numerator"`
	Denominator float64           `json:"denominator"`
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute V and the state for one set of factors",
		RunE:  runEvaluate,
	}
	evalFlags.register(cmd, viability.VariantGeneralized)
	cmd.Flags().StringVar(&flagEvalFormat, "format", "text", "output format (text, json)")
	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	m, err := evalFlags.model()
	if err != nil {
		return err
	}
	o, err := viability.Evaluate(evalFlags.input, m)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch flagEvalFormat {
	case "json":
		return report.WriteJSON(out, evaluation{
			Variant:     m.Variant,
			Input:       evalFlags.input,
			V:           o.Score,
			State:       o.State,
			Numerator:   o.Numerator,
			Denominator: o.Denominator,
		})
	case "text", "":
		_, err := fmt.Fprintf(out, "V=%.4f  %s\n", o.Score, o.State)
		return err
	default:
		return fmt.Errorf("unknown format %q: want text|json", flagEvalFormat)
	}
}
