package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/sim/internal/config"
)

var (
	flagWatch   bool
	flagNoWrite bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every run in the config and write reports",
		RunE:  runAll,
	}
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "re-run whenever the config file changes")
	cmd.Flags().BoolVar(&flagNoWrite, "no-write", false, "print traces only, write no reports")
	return cmd
}

func runAll(cmd *cobra.Command, _ []string) error {
	if flagWatch && cfgFile == "" {
		return fmt.Errorf("--watch requires --config")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	slog.Info("sim: config loaded",
		"config", cfgFile,
		"scenarios", len(cfg.Sim.Scenarios),
		"schedules", len(cfg.Sim.Schedules),
		"sweeps", len(cfg.Sim.Sweeps),
		"output_dir", cfg.Sim.OutputDir,
	)

	out := cmd.OutOrStdout()
	err = execute(out, cfg, !flagNoWrite)
	if !flagWatch {
		return err
	}
	if err != nil {
		slog.Error("sim: run failed", "err", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return config.Watch(ctx, cfgFile, func(updated *config.Config) {
		if err := execute(out, updated, !flagNoWrite); err != nil {
			slog.Error("sim: re-run failed", "err", err)
		}
	})
}
