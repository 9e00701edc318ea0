package gutter

// symbols.go - document positions, the symbol tree and its flattened line index.

import (
	"fmt"

	"fortio.org/safecast"
)

// Position is a zero-based line/character pair, as in LSP.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end pair of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Symbol is one node of a document symbol tree.
type Symbol struct {
	Name           string   `json:"name"`
	Kind           int      `json:"kind"`
	Range          Range    `json:"range"`
	SelectionRange Range    `json:"selectionRange"`
	Children       []Symbol `json:"children,omitempty"`
}

// Diagnostic is the part of a diagnostic the aggregator needs.
type Diagnostic struct {
	Range  Range  `json:"range"`
	Source string `json:"source,omitempty"`
}

// SourceParser tags diagnostics produced by the parser.
const SourceParser = "Parser"

// NamedVerifiable is the status of one verifiable unit, keyed by the
// location of its name.
type NamedVerifiable struct {
	NameRange Range              `json:"nameRange"`
	Status    VerificationStatus `json:"status"`
}

// SymbolID addresses a node in a symbolArena. Zero is reserved.
type SymbolID uint32

const noSymbol SymbolID = 0

type symbolNode struct {
	depth     int
	selection Position
	covering  Range
}

// symbolArena holds a symbol tree flattened in pre-order.
type symbolArena struct {
	nodes []symbolNode
}

func newSymbolArena(roots []Symbol) *symbolArena {
	a := &symbolArena{nodes: make([]symbolNode, 1, len(roots)+1)}

	type frame struct {
		sym   *Symbol
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{sym: &roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a.add(top.sym, top.depth)
		for i := len(top.sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{sym: &top.sym.Children[i], depth: top.depth + 1})
		}
	}
	return a
}

func (a *symbolArena) add(sym *Symbol, depth int) SymbolID {
	value, err := safecast.Conv[uint32](len(a.nodes))
	if err != nil {
		panic(fmt.Errorf("symbol arena overflow: %w", err))
	}
	a.nodes = append(a.nodes, symbolNode{
		depth:     depth,
		selection: sym.SelectionRange.Start,
		covering:  sym.Range,
	})
	return SymbolID(value)
}

// Len reports the number of symbols, excluding the sentinel.
func (a *symbolArena) Len() int { return len(a.nodes) - 1 }

func (a *symbolArena) get(id SymbolID) *symbolNode {
	if id == noSymbol || int(id) >= len(a.nodes) {
		return nil
	}
	return &a.nodes[id]
}

// rangeIndex answers the two lookups of the aggregator: symbol range by name
// position, and enclosing symbol range by line.
type rangeIndex struct {
	byName map[Position]Range
	byLine map[int]SymbolID
	arena  *symbolArena
}

func newRangeIndex(roots []Symbol) *rangeIndex {
	arena := newSymbolArena(roots)
	idx := &rangeIndex{
		byName: make(map[Position]Range, arena.Len()),
		byLine: make(map[int]SymbolID),
		arena:  arena,
	}
	for i := 1; i < len(arena.nodes); i++ {
		id := SymbolID(i)
		node := arena.get(id)
		idx.byName[node.selection] = node.covering
		for line := node.covering.Start.Line; line < node.covering.End.Line; line++ {
			if prev := arena.get(idx.byLine[line]); prev != nil && prev.depth > node.depth {
				continue
			}
			idx.byLine[line] = id
		}
	}
	return idx
}

func (idx *rangeIndex) enclosing(line int) (Range, bool) {
	node := idx.arena.get(idx.byLine[line])
	if node == nil {
		return Range{}, false
	}
	return node.covering, true
}

func (idx *rangeIndex) named(pos Position) (Range, bool) {
	r, ok := idx.byName[pos]
	return r, ok
}
