package main

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	text := contentText(res)
	if res.IsError {
		t.Fatalf("%s returned error: %s", name, text)
	}
	return text
}

func TestE2EVerificationGutter(t *testing.T) {
	if _, err := exec.LookPath("dafny"); err != nil {
		t.Skip("dafny not on PATH")
	}

	// Build the binary.
	binPath := filepath.Join(t.TempDir(), "dafny-mcp")
	build := exec.Command("go", "build", "-o", binPath, ".")
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	transport := &mcp.CommandTransport{
		Command: exec.Command(binPath, "--no-watch", "--config", filepath.Join("testdata", "e2e.toml")),
	}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	simple, _ := filepath.Abs("testdata/simple.dfy")
	failing, _ := filepath.Abs("testdata/failing.dfy")

	callText(t, session, "dafny_open", map[string]any{"file": simple})
	text := callText(t, session, "dafny_verify", map[string]any{"file": simple, "timeout_seconds": 120})
	t.Logf("dafny_verify simple:\n%s", text)
	if !strings.Contains(text, "settled") || !strings.Contains(text, "verified [202]") {
		t.Errorf("expected settled verified gutter, got:\n%s", text)
	}
	if strings.Contains(text, "assertion-failed") {
		t.Errorf("unexpected failure in simple.dfy:\n%s", text)
	}

	callText(t, session, "dafny_open", map[string]any{"file": failing})
	text = callText(t, session, "dafny_verify", map[string]any{"file": failing, "timeout_seconds": 120})
	t.Logf("dafny_verify failing:\n%s", text)
	if !strings.Contains(text, "error-context") {
		t.Errorf("expected error context for Max, got:\n%s", text)
	}
	if !strings.Contains(text, "=== Diagnostics ===") {
		t.Errorf("expected diagnostics, got:\n%s", text)
	}

	text = callText(t, session, "dafny_symbols", map[string]any{"file": failing})
	if !strings.Contains(text, "Max") || !strings.Contains(text, "Trivial") {
		t.Errorf("expected Max and Trivial symbols, got:\n%s", text)
	}

	for _, f := range []string{simple, failing} {
		if text := callText(t, session, "dafny_close", map[string]any{"file": f}); !strings.Contains(text, "Closed") {
			t.Fatalf("expected 'Closed', got: %s", text)
		}
	}
}
