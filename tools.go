package main

// tools.go - MCP tool registration wiring each tool name to its handler.

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanjit/dafny-mcp/internal/dafny"
)

// Tool argument types.

type fileArg struct {
	File string `json:"file" jsonschema:"path to the .dfy file"`
}

type verifyArg struct {
	File           string `json:"file" jsonschema:"path to the .dfy file"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"how long to wait for verification to settle (default 120)"`
}

// registerTools registers all MCP tools on the server.
func registerTools(server *mcp.Server, sm *dafny.StateManager) {
	// Document lifecycle.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_open",
		Description: "Open a .dfy file in the Dafny language server. Verification starts immediately. Must be called before any other operations on the file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := sm.OpenDoc(args.File); err != nil {
			return dafny.ErrResult(err), nil, nil
		}
		return dafny.TextResult("Opened " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_close",
		Description: "Close a .dfy file and release its resources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := sm.CloseDoc(args.File); err != nil {
			return dafny.ErrResult(err), nil, nil
		}
		return dafny.TextResult("Closed " + args.File), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_sync",
		Description: "Re-read a .dfy file from disk after editing it. Edited lines are reported as pending until re-verified.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		if err := sm.SyncDoc(args.File); err != nil {
			return dafny.ErrResult(err), nil, nil
		}
		return dafny.TextResult("Synced " + args.File), nil, nil
	})

	// Gutter.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_gutter",
		Description: "Show the verification status of every line: verified, error-context, assertion-failed or resolution-error, and whether it is pending, running or settled.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return dafny.DoGutter(sm, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_gutter_ranges",
		Description: "Show the verification gutter compressed into line ranges per status, plus the lines edited since the last verification.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return dafny.DoRanges(sm, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_verify",
		Description: "Wait until every method, function and lemma of the file has finished verifying, then return the gutter ranges and diagnostics.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args verifyArg) (*mcp.CallToolResult, any, error) {
		return dafny.DoVerify(sm, args.File, time.Duration(args.TimeoutSeconds)*time.Second)
	})

	// Inspection.
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_diagnostics",
		Description: "Show the latest parser, resolver and verifier diagnostics for the file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return dafny.DoDiagnostics(sm, args.File)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dafny_symbols",
		Description: "Show the module, class, method and function tree of the file with line spans.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileArg) (*mcp.CallToolResult, any, error) {
		return dafny.DoSymbols(sm, args.File)
	})
}
