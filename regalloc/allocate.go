package regalloc

import "github.com/orizon-lang/x64regalloc/lir/x64"

// allocate implements the first-fit allocation pass (C5): compounds are
// processed in the order collect produced them (spec §6, a FIFO), each
// getting the lowest-numbered register in its PossibleRegisters mask
// that does not overlap any interval already committed to the tree.
// There is no spilling (non-goal): a compound with no free register
// left is a fatal error.
func allocate(compounds []*LiveCompound, log Logger) *intervalTree {
	if log == nil {
		log = nopLogger{}
	}

	tree := &intervalTree{}

	for _, cp := range compounds {
		reg := firstFit(tree, cp)
		cp.AllocatedRegister = reg

		for _, iv := range cp.Intervals {
			tree.insert(iv)
		}

		log.Tracef("allocate: compound (%d interval(s)) -> %s", len(cp.Intervals), x64.RegisterName(reg))
	}

	return tree
}

// firstFit finds the lowest register index cp.PossibleRegisters allows
// that is free across every one of cp's intervals, scanning the full
// architectural register file (lir/x64.NumRegisters) rather than just
// the bits cp happens to name, so a fixed single-bit mask short-circuits
// to either "that register" or failure.
func firstFit(tree *intervalTree, cp *LiveCompound) int {
	var blocked uint16

	for _, iv := range cp.Intervals {
		tree.forOverlaps(iv.originPc, iv.finalPc, func(other *LiveInterval) {
			blocked |= 1 << uint(other.compound.AllocatedRegister)
		})
	}

	free := cp.PossibleRegisters &^ blocked

	for reg := 0; reg < x64.NumRegisters; reg++ {
		if free&(1<<uint(reg)) != 0 {
			return reg
		}
	}

	fatalf(categoryExhausted, "no free register in mask %#04x for compound with %d interval(s)", cp.PossibleRegisters, len(cp.Intervals))

	panic("unreachable")
}
