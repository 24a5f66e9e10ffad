package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"tunevision/internal/services"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// RenderOptions controls report output.
type RenderOptions struct {
	Format string
	Color  bool
}

// Render writes report to w in the requested format.
func Render(w io.Writer, report *Report, opts RenderOptions) error {
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatText:
		_, err := io.WriteString(w, RenderText(report, opts.Color))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return services.Wrap(services.ErrValidation, "report", "render",
			fmt.Sprintf("unknown format %q (want %s)", opts.Format, strings.Join(Formats, ", ")), nil)
	}
}

type palette struct {
	heading text.Colors
	good    text.Colors
	bad     text.Colors
	dim     text.Colors
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{
		heading: text.Colors{text.Bold, text.FgHiCyan},
		good:    text.Colors{text.FgGreen},
		bad:     text.Colors{text.FgYellow},
		dim:     text.Colors{text.Faint},
	}
}

func (p palette) paint(c text.Colors, s string) string {
	if len(c) == 0 {
		return s
	}
	return c.Sprint(s)
}

// RenderText renders the report as sections and tables.
func RenderText(r *Report, color bool) string {
	p := newPalette(color)
	var b strings.Builder
	section := func(title string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.paint(p.heading, title))
		b.WriteString("\n")
	}

	section(fmt.Sprintf("Run %s / %s", r.RunID, r.VideoBase))
	b.WriteString(Table([]string{"Artifact", "Status", "Path"}, artifactRows(r, p), nil))
	b.WriteString("\n")

	section("Prompt")
	if r.Prompt != "" {
		b.WriteString(indent(r.Prompt))
	} else {
		b.WriteString(p.paint(p.dim, "  (unavailable)\n"))
	}

	section("Similarity per frame")
	if r.ScoreSummary != nil {
		s := r.ScoreSummary
		fmt.Fprintf(&b, "  frames %d  mean %.4f  min %.4f (%s)  max %.4f (%s)\n",
			s.Frames, s.Mean, s.Min, s.MinFrame, s.Max, s.MaxFrame)
		rows := make([][]string, 0, len(r.Scores))
		for _, row := range r.Scores {
			rows = append(rows, []string{row.Frame, strconv.FormatFloat(row.Score, 'f', 4, 64)})
		}
		b.WriteString(Table([]string{"Frame", "Score"}, rows, []text.Align{text.AlignLeft, text.AlignRight}))
		b.WriteString("\n")
	} else {
		b.WriteString(p.paint(p.dim, "  (no scores)\n"))
	}
	if r.ChartPath != "" {
		fmt.Fprintf(&b, "  chart: %s\n", r.ChartPath)
	}

	section("Detected objects")
	fmt.Fprintf(&b, "  frames analysed: %d\n", r.DetectionFrames)
	if len(r.ObjectCounts) > 0 {
		rows := make([][]string, 0, len(r.ObjectCounts))
		for _, oc := range r.ObjectCounts {
			rows = append(rows, []string{oc.Label, strconv.Itoa(oc.Count)})
		}
		b.WriteString(Table([]string{"Object", "Count"}, rows, []text.Align{text.AlignLeft, text.AlignRight}))
		b.WriteString("\n")
	}

	section("Object appearance")
	if c := r.Comparison; c != nil {
		fmt.Fprintf(&b, "  prompt objects: %s\n", listOrNone(c.PromptObjects))
		b.WriteString(p.paint(p.good, "  appeared: "+listOrNone(c.AppearedObjects)) + "\n")
		b.WriteString(p.paint(p.bad, "  missing:  "+listOrNone(c.MissingObjects)) + "\n")
	} else {
		b.WriteString(p.paint(p.dim, "  (no comparison)\n"))
	}

	section("Feedback")
	if r.Feedback != "" {
		b.WriteString(indent(r.Feedback))
	} else {
		b.WriteString(p.paint(p.dim, "  (no feedback)\n"))
	}

	section("Revised prompt")
	if r.Revised != "" {
		b.WriteString(indent(r.Revised))
	} else {
		b.WriteString(p.paint(p.bad, "  revised prompt file not found\n"))
	}

	if len(r.Warnings) > 0 {
		section("Warnings")
		for _, w := range r.Warnings {
			b.WriteString(p.paint(p.bad, "  ! "+w) + "\n")
		}
	}
	return b.String()
}

func artifactRows(r *Report, p palette) [][]string {
	rows := make([][]string, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		status := p.paint(p.good, "ok")
		if !a.Present {
			status = p.paint(p.bad, "missing")
		}
		rows = append(rows, []string{a.Label, status, a.Path})
	}
	return rows
}

// Table renders rows as a rounded go-pretty table. Missing cells render empty.
func Table(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
