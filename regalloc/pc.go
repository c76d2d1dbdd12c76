package regalloc

import (
	"fmt"

	"github.com/orizon-lang/x64regalloc/lir"
)

// subBlockPos is the sub-block component of a ProgramCounter (spec §3).
type subBlockPos int

const (
	subBefore subBlockPos = iota
	subIn
	subAfter
)

// subInstPos is the sub-instruction component of a ProgramCounter.
type subInstPos int

const (
	instBefore subInstPos = iota
	instAt
	instAfter
)

// pc is a total-order point in the program, finer-grained than an
// instruction boundary (spec §3's ProgramCounter). Block and instruction
// identity are resolved to integers at construction time (via
// blockOrdering/IndexOfInstruction) so comparison is a cheap 4-way
// lexicographic compare with no pointer chasing.
//
// instOrder is -1 for the "no instruction" (⊥) case, which only ever
// pairs with sub == subBefore or sub == subAfter.
type pc struct {
	block     *lir.BasicBlock
	blockOrd  int
	sub       subBlockPos
	instOrder int
	subInst   subInstPos
}

// blockEntryPC is (bb, Before, ⊥, After): the point immediately after
// entering bb, where ArgumentPhis and DataFlowPhis materialize.
func blockEntryPC(ord int, bb *lir.BasicBlock) pc {
	return pc{block: bb, blockOrd: ord, sub: subBefore, instOrder: -1, subInst: instAfter}
}

// blockExitPC is (bb, After, ⊥, After): the point leaving bb, where
// DataFlowEdge source values die.
func blockExitPC(ord int, bb *lir.BasicBlock) pc {
	return pc{block: bb, blockOrd: ord, sub: subAfter, instOrder: -1, subInst: instAfter}
}

// resultOriginPC is (bb, In, inst, After): where inst's results become
// live.
func resultOriginPC(ord int, bb *lir.BasicBlock, instIdx int) pc {
	return pc{block: bb, blockOrd: ord, sub: subIn, instOrder: instIdx, subInst: instAfter}
}

// lastUseFinalPC is (bb, In, inst, Before): where the value's last use
// completes.
func lastUseFinalPC(ord int, bb *lir.BasicBlock, instIdx int) pc {
	return pc{block: bb, blockOrd: ord, sub: subIn, instOrder: instIdx, subInst: instBefore}
}

// compare returns -1, 0, or 1 as a orders before, equals, or orders
// after b, lexicographically on (blockOrd, sub, instOrder, subInst).
func (a pc) compare(b pc) int {
	if a.blockOrd != b.blockOrd {
		return cmpInt(a.blockOrd, b.blockOrd)
	}

	if a.sub != b.sub {
		return cmpInt(int(a.sub), int(b.sub))
	}

	if a.instOrder != b.instOrder {
		return cmpInt(a.instOrder, b.instOrder)
	}

	return cmpInt(int(a.subInst), int(b.subInst))
}

func (a pc) less(b pc) bool   { return a.compare(b) < 0 }
func (a pc) lessEq(b pc) bool { return a.compare(b) <= 0 }
func (a pc) equal(b pc) bool  { return a.compare(b) == 0 }

// String renders a pc for trace logging.
func (a pc) String() string {
	label := "?"
	if a.block != nil {
		label = a.block.Label
	}

	return fmt.Sprintf("%s#%d[%d/%d/%d]", label, a.blockOrd, a.sub, a.instOrder, a.subInst)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// blockOrdering assigns each basic block its position in a function's
// iteration order, resolving the "block pointer identity" component of
// the ProgramCounter total order (spec §3) to a cheap integer compare.
type blockOrdering struct {
	order map[*lir.BasicBlock]int
}

func newBlockOrdering(fn *lir.Function) *blockOrdering {
	o := &blockOrdering{order: make(map[*lir.BasicBlock]int, len(fn.Blocks))}
	for i, bb := range fn.Blocks {
		o.order[bb] = i
	}

	return o
}

func (o *blockOrdering) of(bb *lir.BasicBlock) int {
	ord, ok := o.order[bb]
	if !ok {
		fatalf(categoryInvariant, "block %p does not belong to the function under allocation", bb)
	}

	return ord
}
