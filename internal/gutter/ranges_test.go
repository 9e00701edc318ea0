package gutter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerLineStatusToRanges_StaleLinesSplitRuns(t *testing.T) {
	ranges := PerLineStatusToRanges([]int{1, 1, 1, 0, 0, 0, 2, 2, 2}, []int{2, 4, 6})

	assert.Equal(t, []LineRange{lineRange(0, 1)}, ranges[1])
	assert.Equal(t, []LineRange{lineRange(7, 8)}, ranges[2])
	assert.Equal(t, []LineRange{lineRange(3, 3), lineRange(5, 5)}, ranges[0])
	assert.Len(t, ranges, 3)
}

func TestPerLineStatusToRanges_ColumnIsOne(t *testing.T) {
	ranges := PerLineStatusToRanges([]int{202}, nil)
	require.Len(t, ranges[202], 1)
	assert.Equal(t, LineRange{
		Start: Position{Line: 0, Character: 1},
		End:   Position{Line: 0, Character: 1},
	}, ranges[202][0])
}

func TestPerLineStatusToRanges_Empty(t *testing.T) {
	assert.Empty(t, PerLineStatusToRanges(nil, nil))
	assert.Empty(t, PerLineStatusToRanges([]int{202, 202}, []int{0, 1}))
}

func TestPerLineStatusToRanges_AdjacentRunsStaySeparate(t *testing.T) {
	ranges := PerLineStatusToRanges([]int{202, 302, 302, 202, 500}, nil)
	assert.Equal(t, []LineRange{lineRange(0, 0), lineRange(3, 3)}, ranges[202])
	assert.Equal(t, []LineRange{lineRange(1, 2)}, ranges[302])
	assert.Equal(t, []LineRange{lineRange(4, 4)}, ranges[500])
}

// expand is the inverse of PerLineStatusToRanges without stale lines.
func expand(ranges map[int][]LineRange, lineCount int) []int {
	out := make([]int, lineCount)
	for i := range out {
		out[i] = -1
	}
	for code, list := range ranges {
		for _, r := range list {
			for line := r.Start.Line; line <= r.End.Line; line++ {
				out[line] = code
			}
		}
	}
	return out
}

func TestPerLineStatusToRanges_RoundTrip(t *testing.T) {
	palette := []int{0, 200, 201, 202, 300, 302, 400, 402, 500}
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := rnd.Intn(60)
		perLine := make([]int, n)
		for i := range perLine {
			// Favor repeats so runs are long.
			if i > 0 && rnd.Intn(3) > 0 {
				perLine[i] = perLine[i-1]
				continue
			}
			perLine[i] = palette[rnd.Intn(len(palette))]
		}

		ranges := PerLineStatusToRanges(perLine, nil)
		require.Equal(t, perLine, expand(ranges, n), "iteration %d", iter)

		for code, list := range ranges {
			for i, r := range list {
				require.LessOrEqual(t, r.Start.Line, r.End.Line)
				if i == 0 {
					continue
				}
				prev := list[i-1]
				// Maximal runs: same-code ranges neither overlap nor touch.
				require.Greaterf(t, r.Start.Line, prev.End.Line+1, "code %d iteration %d", code, iter)
			}
		}
	}
}

func TestPerLineStatusToRanges_FromComputedStatuses(t *testing.T) {
	diags := []Diagnostic{{Range: rng(3, 4, 4, 0), Source: "Verifier"}}
	lines, err := ComputeLineStatuses(sampleSymbols(), diags, []NamedVerifiable{
		{NameRange: fooName, Status: StatusError},
	}, 10)
	require.NoError(t, err)

	ranges := PerLineStatusToRanges(Encode(lines), nil)
	assert.Equal(t, []LineRange{lineRange(0, 0), lineRange(5, 9)}, ranges[202])
	assert.Equal(t, []LineRange{lineRange(1, 2), lineRange(4, 4)}, ranges[302])
	assert.Equal(t, []LineRange{lineRange(3, 3)}, ranges[402])
}
