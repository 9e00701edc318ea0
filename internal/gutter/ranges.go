package gutter

// ranges.go - groups contiguous runs of equal line statuses into line ranges.

// LineRange is a line-granular range; the character is always 1.
type LineRange struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func lineRange(start, end int) LineRange {
	return LineRange{
		Start: Position{Line: start, Character: 1},
		End:   Position{Line: end, Character: 1},
	}
}

// PerLineStatusToRanges groups maximal runs of equal codes by code. Stale lines
// end the current run and belong to no range. Ranges of each code are in
// ascending line order.
func PerLineStatusToRanges(perLineStatus []int, staleLines []int) map[int][]LineRange {
	skip := make(map[int]struct{}, len(staleLines))
	for _, line := range staleLines {
		skip[line] = struct{}{}
	}

	ranges := make(map[int][]LineRange)
	runStart := -1
	runCode := 0
	flush := func(end int) {
		if runStart >= 0 {
			ranges[runCode] = append(ranges[runCode], lineRange(runStart, end))
		}
		runStart = -1
	}
	for line, code := range perLineStatus {
		if _, stale := skip[line]; stale {
			flush(line - 1)
			continue
		}
		if runStart >= 0 && code == runCode {
			continue
		}
		flush(line - 1)
		runStart = line
		runCode = code
	}
	flush(len(perLineStatus) - 1)
	return ranges
}
