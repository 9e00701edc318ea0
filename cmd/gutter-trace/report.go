package main

// report.go - per-file verification reports and their text, JSON and YAML renderings.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/sanjit/dafny-mcp/internal/dafny"
	"github.com/sanjit/dafny-mcp/internal/gutter"
)

type lineReport struct {
	Line   int    `json:"line" yaml:"line"`
	Code   int    `json:"code" yaml:"code"`
	Status string `json:"status" yaml:"status"`
	Text   string `json:"text" yaml:"text"`
}

type fileReport struct {
	File        string       `json:"file" yaml:"file"`
	Version     int          `json:"version" yaml:"version"`
	Settled     bool         `json:"settled" yaml:"settled"`
	Updates     int          `json:"updates" yaml:"updates"`
	Elapsed     string       `json:"elapsed" yaml:"elapsed"`
	Lines       []lineReport `json:"lines" yaml:"lines"`
	Diagnostics []string     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	tiers map[gutter.Tier]int
}

func newFileReport(file string, v dafny.GutterView, diags []dafny.Diagnostic) fileReport {
	r := fileReport{
		File:    file,
		Version: v.Version,
		Settled: v.Settled,
		Lines:   make([]lineReport, len(v.Lines)),
		tiers:   make(map[gutter.Tier]int),
	}
	for i, text := range v.Lines {
		st := v.Statuses[i]
		r.Lines[i] = lineReport{Line: i + 1, Code: st.Code(), Status: st.String(), Text: text}
		r.tiers[st.Tier]++
	}
	for _, d := range diags {
		r.Diagnostics = append(r.Diagnostics, fmt.Sprintf("line %d: %s", d.Range.Start.Line+1, d.Message))
	}
	return r
}

// palette colors gutter glyphs. Honors color.NoColor.
type palette struct {
	ok, busy, context, failed, resolution func(a ...any) string
}

func newPalette() palette {
	return palette{
		ok:         color.New(color.FgGreen).SprintFunc(),
		busy:       color.New(color.FgYellow).SprintFunc(),
		context:    color.New(color.FgRed).SprintFunc(),
		failed:     color.New(color.FgRed, color.Bold).SprintFunc(),
		resolution: color.New(color.FgMagenta, color.Bold).SprintFunc(),
	}
}

// glyph is the one-column gutter mark for st.
func (p palette) glyph(st gutter.LineStatus) string {
	switch st.Tier {
	case gutter.TierResolutionError:
		return p.resolution("!")
	case gutter.TierAssertionFailed:
		if st.Settle != gutter.SettleSettled {
			return p.busy("x")
		}
		return p.failed("x")
	case gutter.TierErrorContext:
		if st.Settle != gutter.SettleSettled {
			return p.busy("|")
		}
		return p.context("|")
	case gutter.TierVerified:
		if st.Settle != gutter.SettleSettled {
			return p.busy(".")
		}
		return p.ok("+")
	}
	return " "
}

func writeText(w io.Writer, reports []fileReport) error {
	p := newPalette()
	for _, r := range reports {
		state := "settled"
		if !r.Settled {
			state = "not settled"
		}
		fmt.Fprintf(w, "=== %s (version %d, %s, %d updates, %s) ===\n", r.File, r.Version, state, r.Updates, r.Elapsed)
		for _, l := range r.Lines {
			st, err := gutter.Decode(l.Code)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %4d  %s\n", p.glyph(st), l.Line, l.Text)
		}
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
		fmt.Fprintln(w)
	}
	_, err := io.WriteString(w, summaryTable(reports))
	return err
}

// summaryTable counts lines per tier for each file.
func summaryTable(reports []fileReport) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"File", "Verified", "Error context", "Failed", "Resolution", "Settled"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_CENTER,
	})

	var failed int
	for _, r := range reports {
		settled := "yes"
		if !r.Settled {
			settled = "no"
		}
		table.Append([]string{
			r.File,
			fmt.Sprint(r.tiers[gutter.TierVerified]),
			fmt.Sprint(r.tiers[gutter.TierErrorContext]),
			fmt.Sprint(r.tiers[gutter.TierAssertionFailed]),
			fmt.Sprint(r.tiers[gutter.TierResolutionError]),
			settled,
		})
		failed += r.tiers[gutter.TierAssertionFailed] + r.tiers[gutter.TierResolutionError]
	}
	table.SetFooter([]string{"", "", "", "", "failing lines", fmt.Sprint(failed)})
	table.Render()
	return buf.String()
}

// checkFormat rejects output formats writeReports cannot render.
func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	switch strings.ToLower(format) {
	case "text":
		return writeText(w, reports)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}
	return checkFormat(format)
}

// failing reports whether any file has unsettled or failing lines.
func failing(reports []fileReport) bool {
	for _, r := range reports {
		if !r.Settled || r.tiers[gutter.TierAssertionFailed] > 0 || r.tiers[gutter.TierResolutionError] > 0 {
			return true
		}
	}
	return false
}
