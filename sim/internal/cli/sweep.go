package cli

import (
	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/viability"
)

var (
	sweepFlags      modelFlags
	flagField       string
	flagValues      []float64
	flagSweepFormat string
	flagSweepOut    string
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Vary one factor or parameter and print V for each value",
		RunE:  runSweep,
	}
	sweepFlags.register(cmd, viability.VariantGeneralized)
	cmd.Flags().StringVar(&flagField, "field", runner.FieldM, "field to vary (A, E, R, k, m, omega, p)")
	cmd.Flags().Float64SliceVar(&flagValues, "values", []float64{1.0, 1.3, 1.5, 1.7, 2.0, 2.3, 2.5}, "probe values, in order")
	cmd.Flags().StringVar(&flagSweepFormat, "format", report.FormatTable, "output format (table, markdown, json, prom)")
	cmd.Flags().StringVar(&flagSweepOut, "out", "", "write the sweep report to this path")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	m, err := sweepFlags.model()
	if err != nil {
		return err
	}
	field, err := runner.ParseField(flagField)
	if err != nil {
		return err
	}

	h, err := runner.New(m).RunSweep(runner.Sweep{Field: field, Values: flagValues, Base: sweepFlags.input})
	if err != nil {
		return err
	}

	recs := report.FromHistory(h, report.Options{Places: report.SensitivityPrecision})
	if err := render(cmd.OutOrStdout(), flagSweepFormat, "sweep_"+field, recs); err != nil {
		return err
	}
	if flagSweepOut == "" {
		return nil
	}
	return report.WriteFile(flagSweepOut, recs)
}
