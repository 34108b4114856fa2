package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sasilab/sasi/pkg/types"
)

// Output formats accepted by Render.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Render writes records in the given format. An empty format means table.
func Render(w io.Writer, format string, records []types.Record) error {
	switch format {
	case FormatTable, "":
		return renderTable(w, records)
	case FormatMarkdown:
		return renderMarkdown(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	default:
		return fmt.Errorf("report: unknown format %q: want table|markdown|json", format)
	}
}

func generalized(records []types.Record) bool {
	for _, r := range records {
		if r.A != nil || r.R != nil {
			return true
		}
	}
	return false
}

func columns(records []types.Record) []string {
	if generalized(records) {
		return []string{"#", "A", "E", "R", "k", "m", "omega", "p", "V", "STATE"}
	}
	return []string{"#", "E", "V", "STATE"}
}

func row(i int, r types.Record, gen bool) []string {
	if !gen {
		return []string{strconv.Itoa(i), num(r.E), num(r.V), r.State}
	}
	return []string{
		strconv.Itoa(i),
		opt(r.A), num(r.E), opt(r.R),
		opt(r.K), opt(r.M), opt(r.Omega), opt(r.P),
		num(r.V), r.State,
	}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func opt(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}

func renderTable(w io.Writer, records []types.Record) error {
	return writeTable(w, columns(records), rows(records))
}

func renderMarkdown(w io.Writer, records []types.Record) error {
	return writeMarkdown(w, columns(records), rows(records))
}

func rows(records []types.Record) [][]string {
	gen := generalized(records)
	out := make([][]string, 0, len(records))
	for i, r := range records {
		out = append(out, row(i, r, gen))
	}
	return out
}

func writeTable(w io.Writer, cols []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, cols []string, rows [][]string) error {
	var b strings.Builder
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(cols)) + "\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSensitivity writes both sweeps of an envelope, each under its own
// heading, in the given format.
func RenderSensitivity(w io.Writer, format string, s Sensitivity) error {
	var write func(io.Writer, []string, [][]string) error
	switch format {
	case FormatTable, "":
		write = writeTable
	case FormatMarkdown:
		write = writeMarkdown
	case FormatJSON:
		return WriteJSON(w, s)
	default:
		return fmt.Errorf("report: unknown format %q: want table|markdown|json", format)
	}

	mRows := make([][]string, 0, len(s.AnalysisM))
	for i, p := range s.AnalysisM {
		mRows = append(mRows, []string{strconv.Itoa(i), num(p.M), num(p.V), strconv.FormatBool(p.StructuralCollapse)})
	}
	eRows := make([][]string, 0, len(s.AnalysisE))
	for i, p := range s.AnalysisE {
		eRows = append(eRows, []string{strconv.Itoa(i), num(p.E), num(p.V), p.State})
	}

	fmt.Fprintf(w, "# %s\n", s.Metadata.Description)
	fmt.Fprintln(w, "## analisis_m")
	if err := write(w, []string{"#", "m", "V", "COLLAPSE"}, mRows); err != nil {
		return err
	}
	fmt.Fprintln(w, "## analisis_E")
	return write(w, []string{"#", "E", "V", "STATE"}, eRows)
}
