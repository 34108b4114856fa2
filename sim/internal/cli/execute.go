package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/types"
	"github.com/sasilab/sasi/sim/internal/config"
)

// execute runs every scenario, schedule and sweep in cfg, printing traces to
// w. With write set, each run is saved to output_dir as <name>.json and
// <name>.prom. A failing run is reported and the remaining runs still execute.
func execute(w io.Writer, cfg *config.Config, write bool) error {
	s := cfg.Sim
	influence := s.Agents.EconomicInfluence
	var errs []error

	save := func(name string, h runner.History) {
		if !write {
			return
		}
		if err := writeRun(s.OutputDir, name, h, influence); err != nil {
			errs = append(errs, err)
		}
	}

	for _, sc := range s.Scenarios {
		m, err := s.Model(sc.Variant, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", sc.Name, err))
			continue
		}
		h, err := runner.New(m).RunFixed(sc.Inputs)
		printFixed(w, sc.Name, h)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", sc.Name, err))
			continue
		}
		save(sc.Name, h)
	}

	for _, sc := range s.Schedules {
		m, err := s.Model(sc.Variant, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", sc.Name, err))
			continue
		}
		r := runner.New(m, runner.WithAdvisors(s.Agents.Advisors()...))
		sched := sc.Runner()
		printScheduleHeader(w, sc.Name, r, sched)
		h, traces, err := r.RunSchedule(sched)
		printTraces(w, traces, sched)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", sc.Name, err))
			continue
		}
		save(sc.Name, h)
	}

	sweeps := make(map[string]runner.History, len(s.Sweeps))
	for _, sw := range s.Sweeps {
		m, err := s.Model(sw.Variant, sw.Params)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %q: %w", sw.Name, err))
			continue
		}
		h, err := runner.New(m).RunSweep(sw.Runner())
		printSweep(w, sw.Name, h)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %q: %w", sw.Name, err))
			continue
		}
		sweeps[sw.Name] = h
		save(sw.Name, h)
	}

	if write && s.Sensitivity.Enabled() {
		mh, okM := sweeps[s.Sensitivity.M]
		eh, okE := sweeps[s.Sensitivity.E]
		if okM && okE {
			env := report.NewSensitivity(mh, eh, report.Metadata{
				Description: s.Sensitivity.Description,
				Author:      s.Sensitivity.Author,
			}, time.Now())
			path := filepath.Join(s.OutputDir, s.Sensitivity.FileName())
			if err := report.WriteFile(path, env); err != nil {
				errs = append(errs, err)
			} else {
				slog.Info("sim: sensitivity report written", "path", path)
			}
		}
	}

	return errors.Join(errs...)
}

// writeRun saves h as <dir>/<name>.json and <dir>/<name>.prom.
func writeRun(dir, name string, h runner.History, influence float64) error {
	recs := report.FromHistory(h, report.Options{EconomicInfluence: &influence})
	path := filepath.Join(dir, name+".json")
	if err := report.WriteFile(path, recs); err != nil {
		return err
	}

	if err := writeMetricsFile(filepath.Join(dir, name+".prom"), name, recs); err != nil {
		return err
	}

	slog.Info("sim: report written", "run", name, "path", path, "records", len(recs))
	return nil
}

// createFile opens report files for writing; tests replace it.
var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// writeMetricsFile writes the exposition of recs to path. A failed close is
// returned like a failed write.
func writeMetricsFile(path, run string, recs []types.Record) (err error) {
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %q: %w", path, cerr)
		}
	}()
	return report.WriteMetrics(f, run, recs)
}
