package dafny

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanjit/dafny-mcp/internal/gutter"
)

func sampleView() GutterView {
	lines := []gutter.LineStatus{
		{Tier: gutter.TierVerified, Settle: gutter.SettleSettled},
		{Tier: gutter.TierVerified, Settle: gutter.SettleSettled},
		{Tier: gutter.TierAssertionFailed, Settle: gutter.SettleSettled},
		{Tier: gutter.TierVerified, Settle: gutter.SettlePending},
		{Tier: gutter.TierResolutionError, Settle: gutter.SettleSettled},
	}
	return GutterView{
		URI:           "file:///a.dfy",
		Version:       2,
		GutterVersion: 1,
		Lines:         []string{"a", "b", "c", "d", "e"},
		Statuses:      lines,
		StaleLines:    []int{3},
		Available:     true,
	}
}

func TestFormatGutter(t *testing.T) {
	out := FormatGutter(sampleView())
	assert.Contains(t, out, "=== Gutter: file:///a.dfy (version 2, verifying) ===")
	assert.Contains(t, out, "Results are for version 1; 1 edited line(s) pending.")
	assert.Contains(t, out, "assertion-failed")
	assert.Contains(t, out, "verified (pending)")

	rows := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, rows, 2+5)
	assert.True(t, strings.HasSuffix(rows[len(rows)-1], "500 | e"))
}

func TestFormatRanges(t *testing.T) {
	out := FormatRanges(sampleView())
	assert.Contains(t, out, "verified [202]: lines 1-2\n")
	assert.Contains(t, out, "assertion-failed [402]: lines 3\n")
	assert.Contains(t, out, "resolution-error [500]: lines 5\n")
	assert.Contains(t, out, "stale: lines 4\n")
	assert.NotContains(t, out, "[200]", "stale lines belong to no range")
}

func TestFormatRangesWithoutGutter(t *testing.T) {
	out := FormatRanges(GutterView{URI: "file:///a.dfy", Version: 1})
	assert.Equal(t, "=== Gutter ranges: file:///a.dfy (version 1, no verification results yet) ===\n", out)
}

func TestFormatDiagnostics(t *testing.T) {
	var sb strings.Builder
	FormatDiagnostics(&sb, []Diagnostic{{
		Range:    rng(2, 4, 2, 10),
		Severity: 1,
		Source:   "Verifier",
		Message:  "assertion might not hold",
	}})
	assert.Equal(t, "\n=== Diagnostics ===\n[error] (Verifier) line 3:4-3:10: assertion might not hold\n", sb.String())

	sb.Reset()
	FormatDiagnostics(&sb, nil)
	assert.Empty(t, sb.String())
}

func TestFormatSymbols(t *testing.T) {
	var sb strings.Builder
	FormatSymbols(&sb, sampleSymbols())
	want := "module M (lines 1-10)\n" +
		"  method Foo (lines 2-6)\n" +
		"  method Bar (lines 7-9)\n"
	assert.Equal(t, want, sb.String())
}
