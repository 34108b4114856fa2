package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/types"
)

// formatProm selects Prometheus text exposition in the report and sweep commands.
const formatProm = "prom"

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Render a stored history or sensitivity report",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	cmd.Flags().StringVar(&flagFormat, "format", report.FormatTable, "output format (table, markdown, json, prom)")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	run := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := cmd.OutOrStdout()

	// A history report is a JSON array; the sensitivity envelope is an object.
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		s, err := report.ReadSensitivity(path)
		if err != nil {
			return err
		}
		// Only the E sweep carries input factors, so it alone becomes metrics.
		if flagFormat == formatProm {
			return report.WriteMetrics(out, run+"_E", s.ERecords())
		}
		return report.RenderSensitivity(out, flagFormat, *s)
	}

	recs, err := report.ReadFile(path)
	if err != nil {
		return err
	}
	return render(out, flagFormat, run, recs)
}

func render(w io.Writer, format, run string, recs []types.Record) error {
	if format == formatProm {
		return report.WriteMetrics(w, run, recs)
	}
	return report.Render(w, format, recs)
}
