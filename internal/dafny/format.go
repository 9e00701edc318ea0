package dafny

// format.go - rendering gutters, ranges, diagnostics and symbols to text.

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanjit/dafny-mcp/internal/gutter"
)

func gutterState(v GutterView) string {
	switch {
	case !v.Available:
		return "no verification results yet"
	case v.Settled:
		return "settled"
	default:
		return "verifying"
	}
}

// FormatGutter renders one row per source line: number, status label, code.
func FormatGutter(v GutterView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Gutter: %s (version %d, %s) ===\n", v.URI, v.Version, gutterState(v))
	if v.Available && v.GutterVersion < v.Version {
		fmt.Fprintf(&sb, "Results are for version %d; %d edited line(s) pending.\n",
			v.GutterVersion, len(v.StaleLines))
	}
	for i, line := range v.Lines {
		st := v.Statuses[i]
		fmt.Fprintf(&sb, "%4d %-30s %3d | %s\n", i+1, st, st.Code(), line)
	}
	return sb.String()
}

// formatLines renders 0-based ranges as 1-based "a-b" or "a" spans.
func formatLines(ranges []gutter.LineRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		if r.Start.Line == r.End.Line {
			parts[i] = strconv.Itoa(r.Start.Line + 1)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", r.Start.Line+1, r.End.Line+1)
		}
	}
	return strings.Join(parts, ", ")
}

// FormatRanges renders the range groups of v, one status per row.
func FormatRanges(v GutterView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Gutter ranges: %s (version %d, %s) ===\n", v.URI, v.Version, gutterState(v))
	groups := v.Ranges()
	codes := make([]int, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		label := strconv.Itoa(code)
		if st, err := gutter.Decode(code); err == nil {
			label = fmt.Sprintf("%s [%d]", st, code)
		}
		fmt.Fprintf(&sb, "%s: lines %s\n", label, formatLines(groups[code]))
	}
	if len(v.StaleLines) > 0 {
		stale := make([]string, len(v.StaleLines))
		for i, l := range v.StaleLines {
			stale[i] = strconv.Itoa(l + 1)
		}
		fmt.Fprintf(&sb, "stale: lines %s\n", strings.Join(stale, ", "))
	}
	return sb.String()
}

func severityName(s int) string {
	switch s {
	case 1:
		return "error"
	case 2:
		return "warning"
	case 4:
		return "hint"
	default:
		return "info"
	}
}

// FormatDiagnostics appends diagnostic output to a string builder.
func FormatDiagnostics(sb *strings.Builder, diags []Diagnostic) {
	if len(diags) == 0 {
		return
	}
	sb.WriteString("\n=== Diagnostics ===\n")
	for _, d := range diags {
		source := ""
		if d.Source != "" {
			source = " (" + d.Source + ")"
		}
		fmt.Fprintf(sb, "[%s]%s line %d:%d-%d:%d: %s\n",
			severityName(d.Severity), source,
			d.Range.Start.Line+1, d.Range.Start.Character,
			d.Range.End.Line+1, d.Range.End.Character,
			d.Message)
	}
}

var symbolKinds = map[int]string{
	2:  "module",
	5:  "class",
	6:  "method",
	7:  "property",
	8:  "field",
	9:  "constructor",
	10: "enum",
	11: "interface",
	12: "function",
	13: "variable",
	14: "constant",
	22: "enum member",
	23: "struct",
	26: "type parameter",
}

func symbolKindName(kind int) string {
	if name, ok := symbolKinds[kind]; ok {
		return name
	}
	return "kind " + strconv.Itoa(kind)
}

// FormatSymbols writes the symbol tree, indented by depth.
func FormatSymbols(sb *strings.Builder, symbols []gutter.Symbol) {
	type frame struct {
		sym   *gutter.Symbol
		depth int
	}
	stack := make([]frame, 0, len(symbols))
	for i := len(symbols) - 1; i >= 0; i-- {
		stack = append(stack, frame{&symbols[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fmt.Fprintf(sb, "%s%s %s (lines %d-%d)\n", strings.Repeat("  ", f.depth),
			symbolKindName(f.sym.Kind), f.sym.Name, f.sym.Range.Start.Line+1, f.sym.Range.End.Line+1)
		for i := len(f.sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{&f.sym.Children[i], f.depth + 1})
		}
	}
}

// TextResult wraps a string in an MCP CallToolResult.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrResult wraps an error in an MCP CallToolResult.
func ErrResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
