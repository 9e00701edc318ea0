package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sanjit/dafny-mcp/internal/dafny"
	"github.com/sanjit/dafny-mcp/internal/gutter"
)

func sampleReport() fileReport {
	v := dafny.GutterView{
		URI:     "file:///max.dfy",
		Version: 1,
		Lines:   []string{"method Max()", "  m := a;", "}"},
		Statuses: []gutter.LineStatus{
			{Tier: gutter.TierErrorContext, Settle: gutter.SettleSettled},
			{Tier: gutter.TierAssertionFailed, Settle: gutter.SettleSettled},
			{Tier: gutter.TierVerified, Settle: gutter.SettleRunning},
		},
		Settled:   true,
		Available: true,
	}
	diags := []dafny.Diagnostic{{Range: gutter.Range{Start: gutter.Position{Line: 1}}, Message: "postcondition might not hold"}}
	return newFileReport("max.dfy", v, diags)
}

func TestNewFileReport(t *testing.T) {
	r := sampleReport()
	require.Len(t, r.Lines, 3)
	assert.Equal(t, lineReport{Line: 2, Code: 402, Status: "assertion-failed", Text: "  m := a;"}, r.Lines[1])
	assert.Equal(t, "verified (running)", r.Lines[2].Status)
	assert.Equal(t, []string{"line 2: postcondition might not hold"}, r.Diagnostics)
	assert.True(t, failing([]fileReport{r}))
}

func TestWriteTextWithoutColor(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, writeReports(&buf, "text", []fileReport{sampleReport()}))

	out := buf.String()
	assert.Contains(t, out, "=== max.dfy (version 1, settled, 0 updates, ) ===")
	assert.Contains(t, out, "|    1  method Max()\n")
	assert.Contains(t, out, "x    2    m := a;\n")
	assert.Contains(t, out, ".    3  }\n")
	assert.Contains(t, out, "line 2: postcondition might not hold")
	assert.Contains(t, strings.ToLower(out), "failing lines")
}

func TestWriteStructuredFormats(t *testing.T) {
	reports := []fileReport{sampleReport()}

	var js bytes.Buffer
	require.NoError(t, writeReports(&js, "json", reports))
	var fromJSON []fileReport
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, reports[0].Lines, fromJSON[0].Lines)

	var ym bytes.Buffer
	require.NoError(t, writeReports(&ym, "yaml", reports))
	var fromYAML []fileReport
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, reports[0].Lines, fromYAML[0].Lines)

	assert.Error(t, writeReports(&js, "xml", reports))
}

func TestUnknownFormatRejectedBeforeVerifying(t *testing.T) {
	rootCmd.SetArgs([]string{"--format", "xml", "--color", "off", "--dafny", "/nonexistent/dafny", "missing.dfy"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestSetupColor(t *testing.T) {
	require.NoError(t, setupColor("on"))
	assert.False(t, color.NoColor)
	require.NoError(t, setupColor("off"))
	assert.True(t, color.NoColor)
	assert.Error(t, setupColor("rainbow"))
}
