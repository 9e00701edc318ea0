// Package gutter computes per-line verification statuses for a document from
// its symbol tree, its diagnostics and the verification status of each symbol.
package gutter

// aggregate.go - merges symbols, diagnostics and symbol statuses into one status per line.

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEnclosingSymbol is returned when a diagnostic line lies outside every symbol.
	ErrNoEnclosingSymbol = errors.New("no symbol encloses diagnostic line")
	// ErrUnknownSymbol is returned when a status names a position no symbol is selected at.
	ErrUnknownSymbol = errors.New("no symbol at status name position")
	// ErrUnknownStatus is returned for a verification status outside the known set.
	ErrUnknownStatus = errors.New("unknown verification status")
	// ErrNegativeLineCount is returned when the document line count is negative.
	ErrNegativeLineCount = errors.New("negative line count")
)

// ComputeLineStatuses classifies every line in [0, lineCount).
//
// Diagnostic ranges cover [start.line, end.line) and mark the whole enclosing
// symbol as error context. A status covers [start.line, end.line] of the symbol
// whose selection range starts at the status name position. Lines without a
// status are treated as settled.
//
// Any diagnostic or status that cannot be joined to the symbol tree aborts the
// computation; the inputs are expected to describe the same document version.
func ComputeLineStatuses(symbols []Symbol, diags []Diagnostic, statuses []NamedVerifiable, lineCount int) ([]LineStatus, error) {
	if lineCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLineCount, lineCount)
	}
	idx := newRangeIndex(symbols)

	// true when at least one parser diagnostic touches the line
	errorLines := make(map[int]bool)
	contextLines := make(map[int]struct{})
	for _, d := range diags {
		parser := d.Source == SourceParser
		for line := d.Range.Start.Line; line < d.Range.End.Line; line++ {
			errorLines[line] = errorLines[line] || parser
			enclosing, ok := idx.enclosing(line)
			if !ok {
				return nil, fmt.Errorf("%w: line %d", ErrNoEnclosingSymbol, line)
			}
			for l := enclosing.Start.Line; l < enclosing.End.Line; l++ {
				contextLines[l] = struct{}{}
			}
		}
	}

	statusPerLine := make(map[int]VerificationStatus)
	for _, s := range statuses {
		symbolRange, ok := idx.named(s.NameRange.Start)
		if !ok {
			return nil, fmt.Errorf("%w: %d:%d", ErrUnknownSymbol, s.NameRange.Start.Line, s.NameRange.Start.Character)
		}
		for line := symbolRange.Start.Line; line <= symbolRange.End.Line; line++ {
			statusPerLine[line] = s.Status
		}
	}

	out := make([]LineStatus, lineCount)
	for line := range out {
		parser, failed := errorLines[line]
		if failed && parser {
			out[line] = LineStatus{Tier: TierResolutionError, Settle: SettleSettled}
			continue
		}
		tier := TierVerified
		if failed {
			tier = TierAssertionFailed
		} else if _, ok := contextLines[line]; ok {
			tier = TierErrorContext
		}
		status, known := statusPerLine[line]
		settle, err := settleOf(status, known)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out[line] = LineStatus{Tier: tier, Settle: settle}
	}
	return out, nil
}

// MarkStale returns a copy of lines with the listed lines forced back to
// pending. Out-of-range line numbers are ignored.
func MarkStale(lines []LineStatus, staleLines []int) []LineStatus {
	out := make([]LineStatus, len(lines))
	copy(out, lines)
	for _, line := range staleLines {
		if line < 0 || line >= len(out) {
			continue
		}
		out[line].Settle = SettlePending
	}
	return out
}
