package regalloc

import (
	"github.com/orizon-lang/x64regalloc/lir"
	"github.com/orizon-lang/x64regalloc/lir/x64"
)

// moveSeqEntry is one parallel-copy edge {dst <- src}, already filtered
// of identity moves (src and dst sharing a register needs nothing done).
type moveSeqEntry struct {
	src *lir.Value
	dst *lir.Value
}

// sequenceMoves resolves a parallel copy into an ordered list of real
// moves and exchanges (spec §4.6.2): a move whose destination register
// nobody else still needs as a source is a safe "tail" and can be
// realized directly, in any order; once every remaining move's
// destination is also somebody's source, the remainder is a disjoint
// union of register-permutation cycles, each broken with an XchgMR (a
// 2-cycle) or a scratch register borrowed from x64.ScratchCandidates
// (anything longer).
func sequenceMoves(moves []moveSeqEntry, log Logger) []lir.Instruction {
	pending := append([]moveSeqEntry(nil), moves...)

	var out []lir.Instruction

	for len(pending) > 0 {
		if i := findTail(pending); i >= 0 {
			m := pending[i]
			out = append(out, realMov(m.src, m.dst))
			pending = append(pending[:i], pending[i+1:]...)

			continue
		}

		cycle, rest := extractCycle(pending)
		out = append(out, realizeCycle(cycle, log)...)
		pending = rest
	}

	return out
}

// findTail returns the index of a move in pending whose destination
// register is not read as a source by any pending move, or -1 if none
// exists (every remaining move belongs to a cycle).
func findTail(pending []moveSeqEntry) int {
	for i, m := range pending {
		needed := false

		for _, other := range pending {
			if other.src.Register() == m.dst.Register() {
				needed = true

				break
			}
		}

		if !needed {
			return i
		}
	}

	return -1
}

// extractCycle follows the permutation chain starting at pending[0]
// until it loops back on itself, returning that cycle and the remaining
// moves untouched. Only valid to call once findTail has found no safe
// tail: every node in pending then has both in- and out-degree 1 over
// the register graph, so the chain from any starting point is itself a
// complete cycle.
func extractCycle(pending []moveSeqEntry) (cycle, rest []moveSeqEntry) {
	bySrcReg := make(map[int]moveSeqEntry, len(pending))
	for _, m := range pending {
		bySrcReg[m.src.Register()] = m
	}

	start := pending[0]
	cur := start
	inCycle := make(map[int]bool, len(pending))

	for {
		cycle = append(cycle, cur)
		inCycle[cur.src.Register()] = true

		if cur.dst.Register() == start.src.Register() {
			break
		}

		next, ok := bySrcReg[cur.dst.Register()]
		if !ok {
			fatalf(categoryCycle, "move sequencer: chain from register %s does not close into a cycle", x64.RegisterName(cur.dst.Register()))
		}

		cur = next
	}

	for _, m := range pending {
		if !inCycle[m.src.Register()] {
			rest = append(rest, m)
		}
	}

	return cycle, rest
}

// realizeCycle lowers one register-permutation cycle into concrete
// instructions.
func realizeCycle(cycle []moveSeqEntry, log Logger) []lir.Instruction {
	switch len(cycle) {
	case 0:
		return nil
	case 1:
		fatalf(categoryInvariant, "move sequencer: singleton cycle should have been a tail")
	case 2:
		vA, dA := cycle[0].src, cycle[0].dst
		vB, dB := cycle[1].src, cycle[1].dst
		log.Tracef("rewrite: xchg %s, %s (2-cycle)", x64.RegisterName(vA.Register()), x64.RegisterName(vB.Register()))

		return []lir.Instruction{realXchg(vA, dA, vB, dB)}
	}

	return realizeLongCycle(cycle, log)
}

// realizeLongCycle breaks a cycle of length 3 or more by saving the
// first node's content to a scratch register, replaying the remaining
// moves in reverse order (each destination was just vacated by the move
// processed immediately before it), and finally draining the scratch
// into the one destination the saved value was always bound for.
func realizeLongCycle(cycle []moveSeqEntry, log Logger) []lir.Instruction {
	used := make(map[int]bool, len(cycle))
	for _, m := range cycle {
		used[m.src.Register()] = true
	}

	scratchReg := -1

	for _, candidate := range x64.ScratchCandidates {
		if !used[candidate] {
			scratchReg = candidate

			break
		}
	}

	if scratchReg < 0 {
		fatalf(categoryCycle, "move sequencer: no scratch register free to break a %d-cycle", len(cycle))
	}

	scratch := lir.NewValue(lir.KindModeM)
	scratch.SetRegister(scratchReg)

	log.Tracef("rewrite: %s <- %s (cycle scratch save, %d-cycle)", x64.RegisterName(scratchReg), x64.RegisterName(cycle[0].src.Register()), len(cycle))

	out := make([]lir.Instruction, 0, len(cycle)+1)
	out = append(out, realMov(cycle[0].src, scratch))

	for i := len(cycle) - 1; i >= 1; i-- {
		out = append(out, realMov(cycle[i].src, cycle[i].dst))
	}

	out = append(out, realMov(scratch, cycle[0].dst))

	return out
}
