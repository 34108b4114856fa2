package cli

import (
	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/viability"
)

var (
	simFlags      modelFlags
	flagInitialE  float64
	flagSteps     int
	flagMutateAt  int
	flagMutateTo  float64
	flagNoAgents  bool
	flagInfluence float64
	flagSimOut    string
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one step schedule with a midpoint effectiveness mutation",
		RunE:  runSimulate,
	}
	simFlags.register(cmd, viability.VariantSimple)
	cmd.Flags().Float64Var(&flagInitialE, "initial-e", 0.8, "effectiveness at step 1")
	cmd.Flags().IntVar(&flagSteps, "steps", 10, "number of steps")
	cmd.Flags().IntVar(&flagMutateAt, "mutate-at", -1, "zero-based step after which E is forced (default steps/2)")
	cmd.Flags().Float64Var(&flagMutateTo, "mutate-to", runner.DegradedEffectiveness, "value E is forced to")
	cmd.Flags().BoolVar(&flagNoAgents, "no-agents", false, "skip the decision stubs")
	cmd.Flags().Float64Var(&flagInfluence, "economic-influence", agents.DefaultInfluence, "economic stub influence")
	cmd.Flags().StringVar(&flagSimOut, "out", "", "write the history report to this path")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	m, err := simFlags.model()
	if err != nil {
		return err
	}

	at := flagMutateAt
	if at < 0 {
		at = flagSteps / 2
	}
	sched := runner.Schedule{
		Steps:     flagSteps,
		Initial:   flagInitialE,
		Base:      simFlags.input,
		Mutations: []runner.Mutation{{AtStep: at, Effectiveness: flagMutateTo}},
	}

	var opts []runner.Option
	if !flagNoAgents {
		opts = append(opts, runner.WithAdvisors(agents.Default(agents.Credentials{}, flagInfluence)...))
	}
	r := runner.New(m, opts...)

	out := cmd.OutOrStdout()
	printScheduleHeader(out, "adhoc", r, sched)
	h, traces, err := r.RunSchedule(sched)
	printTraces(out, traces, sched)
	if err != nil {
		return err
	}

	if flagSimOut == "" {
		return nil
	}
	recs := report.FromHistory(h, report.Options{EconomicInfluence: &flagInfluence})
	return report.WriteFile(flagSimOut, recs)
}
