package gutter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(sl, sc, el, ec int) Range {
	return Range{Start: Position{Line: sl, Character: sc}, End: Position{Line: el, Character: ec}}
}

// sampleSymbols models:
//
//	0 module M {
//	1   method Foo() {
//	2     assert a;
//	3     assert b;
//	4     assert c;
//	5   }
//	6   method Bar() {
//	7     x := 1;
//	8   }
//	9 }
func sampleSymbols() []Symbol {
	return []Symbol{{
		Name:           "M",
		Range:          rng(0, 0, 9, 1),
		SelectionRange: rng(0, 7, 0, 8),
		Children: []Symbol{
			{Name: "Foo", Range: rng(1, 2, 5, 3), SelectionRange: rng(1, 9, 1, 12)},
			{Name: "Bar", Range: rng(6, 2, 8, 3), SelectionRange: rng(6, 9, 6, 12)},
		},
	}}
}

var (
	fooName = rng(1, 9, 1, 12)
	barName = rng(6, 9, 6, 12)
)

func codes(t *testing.T, diags []Diagnostic, statuses []NamedVerifiable) []int {
	t.Helper()
	lines, err := ComputeLineStatuses(sampleSymbols(), diags, statuses, 10)
	require.NoError(t, err)
	return Encode(lines)
}

func TestComputeLineStatuses_AllVerified(t *testing.T) {
	got := codes(t, nil, []NamedVerifiable{
		{NameRange: fooName, Status: StatusCorrect},
		{NameRange: barName, Status: StatusRunning},
	})
	want := []int{202, 202, 202, 202, 202, 202, 201, 201, 201, 202}
	assert.Equal(t, want, got)
}

func TestComputeLineStatuses_NoStatusesDefaultsToSettled(t *testing.T) {
	got := codes(t, nil, nil)
	for line, code := range got {
		assert.Equalf(t, 202, code, "line %d", line)
	}
}

func TestComputeLineStatuses_AssertionFailureMarksContext(t *testing.T) {
	diags := []Diagnostic{{Range: rng(3, 4, 4, 0), Source: "Verifier"}}
	got := codes(t, diags, []NamedVerifiable{
		{NameRange: fooName, Status: StatusError},
		{NameRange: barName, Status: StatusCorrect},
	})
	want := []int{202, 302, 302, 402, 302, 202, 202, 202, 202, 202}
	assert.Equal(t, want, got)
}

func TestComputeLineStatuses_ParserErrorWins(t *testing.T) {
	diags := []Diagnostic{{Range: rng(7, 0, 8, 0), Source: SourceParser}}
	got := codes(t, diags, []NamedVerifiable{
		{NameRange: barName, Status: StatusRunning},
	})
	assert.Equal(t, 500, got[7])
	assert.Equal(t, 301, got[6])
	assert.Equal(t, 201, got[8])
}

func TestComputeLineStatuses_ParserMarkIsSticky(t *testing.T) {
	parser := Diagnostic{Range: rng(2, 0, 3, 0), Source: SourceParser}
	verifier := Diagnostic{Range: rng(2, 0, 3, 0), Source: "Verifier"}

	for name, diags := range map[string][]Diagnostic{
		"parser first":   {parser, verifier},
		"verifier first": {verifier, parser},
	} {
		t.Run(name, func(t *testing.T) {
			got := codes(t, diags, nil)
			assert.Equal(t, 500, got[2])
		})
	}
}

func TestComputeLineStatuses_SingleLineDiagnosticTouchesNothing(t *testing.T) {
	diags := []Diagnostic{{Range: rng(3, 4, 3, 9), Source: "Verifier"}}
	got := codes(t, diags, nil)
	assert.Equal(t, 202, got[3])
	assert.Equal(t, 202, got[2])
}

func TestComputeLineStatuses_MultiLineDiagnostic(t *testing.T) {
	diags := []Diagnostic{{Range: rng(2, 0, 4, 0), Source: "Resolver"}}
	got := codes(t, diags, nil)
	assert.Equal(t, []int{202, 302, 402, 402, 302, 202, 202, 202, 202, 202}, got)
}

func TestComputeLineStatuses_ErrorContextSkipsOwnDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{Range: rng(2, 0, 3, 0), Source: "Verifier"},
		{Range: rng(4, 0, 5, 0), Source: "Verifier"},
	}
	got := codes(t, diags, nil)
	assert.Equal(t, 302, got[1])
	assert.Equal(t, 402, got[2])
	assert.Equal(t, 302, got[3])
	assert.Equal(t, 402, got[4])
}

func TestComputeLineStatuses_MinorTierFollowsStatus(t *testing.T) {
	tests := []struct {
		status VerificationStatus
		settle Settle
	}{
		{StatusStale, SettlePending},
		{StatusQueued, SettlePending},
		{StatusRunning, SettleRunning},
		{StatusError, SettleSettled},
		{StatusCorrect, SettleSettled},
	}
	diags := []Diagnostic{{Range: rng(3, 0, 4, 0), Source: "Verifier"}}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			lines, err := ComputeLineStatuses(sampleSymbols(), diags, []NamedVerifiable{
				{NameRange: fooName, Status: tt.status},
			}, 10)
			require.NoError(t, err)
			for line := 1; line <= 5; line++ {
				assert.Equalf(t, tt.settle, lines[line].Settle, "line %d", line)
			}
			assert.Equal(t, TierAssertionFailed, lines[3].Tier)
			assert.Equal(t, TierErrorContext, lines[2].Tier)
			assert.Equal(t, TierVerified, lines[5].Tier)
		})
	}
}

func TestComputeLineStatuses_Completeness(t *testing.T) {
	for _, n := range []int{0, 1, 5, 10, 40} {
		lines, err := ComputeLineStatuses(sampleSymbols(), nil, []NamedVerifiable{
			{NameRange: fooName, Status: StatusQueued},
		}, n)
		require.NoError(t, err)
		assert.Len(t, lines, n)
	}
}

func TestComputeLineStatuses_Idempotent(t *testing.T) {
	diags := []Diagnostic{
		{Range: rng(3, 4, 4, 0), Source: "Verifier"},
		{Range: rng(7, 0, 8, 0), Source: SourceParser},
	}
	statuses := []NamedVerifiable{
		{NameRange: fooName, Status: StatusError},
		{NameRange: barName, Status: StatusQueued},
	}
	first := codes(t, diags, statuses)
	second := codes(t, diags, statuses)
	assert.Equal(t, first, second)
}

func TestComputeLineStatuses_Errors(t *testing.T) {
	tests := []struct {
		name     string
		diags    []Diagnostic
		statuses []NamedVerifiable
		lines    int
		want     error
	}{
		{
			name:  "diagnostic outside symbols",
			diags: []Diagnostic{{Range: rng(9, 0, 10, 0)}},
			lines: 10,
			want:  ErrNoEnclosingSymbol,
		},
		{
			name:     "status without symbol",
			statuses: []NamedVerifiable{{NameRange: rng(2, 0, 2, 3), Status: StatusCorrect}},
			lines:    10,
			want:     ErrUnknownSymbol,
		},
		{
			name:     "status outside known set",
			statuses: []NamedVerifiable{{NameRange: fooName, Status: 3}},
			lines:    10,
			want:     ErrUnknownStatus,
		},
		{
			name:  "negative line count",
			lines: -1,
			want:  ErrNegativeLineCount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := ComputeLineStatuses(sampleSymbols(), tt.diags, tt.statuses, tt.lines)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, lines)
		})
	}
}

func TestRangeIndex_InnermostSymbolOwnsLine(t *testing.T) {
	idx := newRangeIndex(sampleSymbols())
	assert.Equal(t, 3, idx.arena.Len())

	r, ok := idx.enclosing(3)
	require.True(t, ok)
	assert.Equal(t, rng(1, 2, 5, 3), r)

	r, ok = idx.enclosing(5)
	require.True(t, ok)
	assert.Equal(t, rng(0, 0, 9, 1), r)

	_, ok = idx.enclosing(9)
	assert.False(t, ok)
}

func TestRangeIndex_DeepTree(t *testing.T) {
	// A chain nested far deeper than any real program.
	const depth = 2000
	root := Symbol{Range: rng(0, 0, depth+1, 0), SelectionRange: rng(0, 0, 0, 1)}
	cur := &root
	for i := 1; i <= depth; i++ {
		cur.Children = []Symbol{{Range: rng(i, 0, depth+1, 0), SelectionRange: rng(i, 0, i, 1)}}
		cur = &cur.Children[0]
	}
	idx := newRangeIndex([]Symbol{root})
	assert.Equal(t, depth+1, idx.arena.Len())

	r, ok := idx.enclosing(depth)
	require.True(t, ok)
	assert.Equal(t, depth, r.Start.Line)
}

func TestMarkStale(t *testing.T) {
	lines := []LineStatus{
		{Tier: TierVerified, Settle: SettleSettled},
		{Tier: TierErrorContext, Settle: SettleRunning},
		{Tier: TierResolutionError, Settle: SettleSettled},
	}
	got := MarkStale(lines, []int{0, 2, 7, -1})
	assert.Equal(t, []int{200, 301, 500}, Encode(got))
	assert.Equal(t, []int{202, 301, 500}, Encode(lines), "input must not be modified")
}
