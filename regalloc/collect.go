package regalloc

import (
	"github.com/orizon-lang/x64regalloc/lir"
	"github.com/orizon-lang/x64regalloc/lir/x64"
)

// collect implements the interval-collection pass (C4): it establishes a
// LiveCompound and at least one LiveInterval for every Value in fn, and
// lowers in-place and multi-operand instructions into the pseudo-moves
// the allocator and rewriter (C5/C6) actually operate on. It returns the
// compounds in FIFO allocation order (spec §6).
//
// Phi values are materialized before any instruction is visited (a
// block's ArgumentPhis and DataFlowPhis are live from block entry, so
// an instruction anywhere in the function may already read one); the
// DataFlowEdge pseudo-moves that feed those phis are only inserted once
// every block's own instructions have been lowered, since an edge's
// alias may itself be the result of an in-place pseudo-move inserted
// during that pass.
func collect(fn *lir.Function, log Logger) []*LiveCompound {
	if log == nil {
		log = nopLogger{}
	}

	c := &collector{
		fn:        fn,
		order:     newBlockOrdering(fn),
		log:       log,
		instBlock: make(map[lir.Instruction]*lir.BasicBlock),
		ivByValue: make(map[*lir.Value]*LiveInterval),
	}

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions() {
			c.instBlock[inst] = bb
		}
	}

	for _, bb := range fn.Blocks {
		c.collectPhiOrigins(bb)
	}

	for _, bb := range fn.Blocks {
		c.visitBlockInstructions(bb)
	}

	for _, bb := range fn.Blocks {
		c.lowerPhiEdges(bb)
	}

	c.finalizeFinalPcs()

	return c.compounds
}

type collector struct {
	fn    *lir.Function
	order *blockOrdering
	log   Logger

	instBlock map[lir.Instruction]*lir.BasicBlock
	ivByValue map[*lir.Value]*LiveInterval

	compounds []*LiveCompound
}

// newCompoundFor opens a fresh LiveCompound containing exactly one
// interval, for value, originating at origin.
func (c *collector) newCompoundFor(value *lir.Value, origin pc, mask uint16) *LiveInterval {
	cp := newCompound(mask)
	iv := cp.addInterval(value, origin)
	c.compounds = append(c.compounds, cp)
	c.ivByValue[value] = iv
	c.log.Tracef("collect: new compound for %p at %s (mask %#04x)", value, origin, mask)

	return iv
}

func (c *collector) defineOriginOnly(bb *lir.BasicBlock, inst lir.Instruction) pc {
	idx := bb.IndexOfInstruction(inst)
	if idx < 0 {
		fatalf(categoryInvariant, "collect: instruction %v not found in block %s", inst, bb.Label)
	}

	return resultOriginPC(c.order.of(bb), bb, idx)
}

func (c *collector) defineResult(bb *lir.BasicBlock, inst lir.Instruction, value *lir.Value, mask uint16) *LiveInterval {
	return c.newCompoundFor(value, c.defineOriginOnly(bb, inst), mask)
}

// collectPhiOrigins materializes bb's phis' compounds at block entry.
// ArgumentPhis get a singleton compound fixed to their ABI mask;
// DataFlowPhis get a singleton compound too, grown later (in
// lowerPhiEdges) to include one interval per incoming pseudo-move.
func (c *collector) collectPhiOrigins(bb *lir.BasicBlock) {
	origin := blockEntryPC(c.order.of(bb), bb)

	for _, phi := range bb.Phis {
		switch p := phi.(type) {
		case *lir.ArgumentPhi:
			c.newCompoundFor(p.Value(), origin, p.Mask)
		case *lir.DataFlowPhi:
			c.newCompoundFor(p.Value(), origin, x64.MaskFirstFour)
		default:
			fatalf(categoryUnknownKind, "collect: unrecognized phi kind %T", phi)
		}
	}
}

// lowerPhiEdges inserts, for every DataFlowPhi in bb, one PseudoMoveSingle
// at the end of each incoming edge's source block, fusing its result into
// the phi's compound and repointing the edge's alias at it (spec §4.4).
func (c *collector) lowerPhiEdges(bb *lir.BasicBlock) {
	for _, phi := range bb.Phis {
		p, ok := phi.(*lir.DataFlowPhi)
		if !ok {
			continue
		}

		iv := c.ivByValue[p.Value()]

		for _, edge := range p.Edges {
			src := edge.Source
			srcOrd := c.order.of(src)
			aliasValue := edge.Alias.Target()

			pseudo := x64.NewPseudoMoveSingle(aliasValue)
			src.Append(pseudo)
			c.instBlock[pseudo] = src

			origin := resultOriginPC(srcOrd, src, src.IndexOfInstruction(pseudo))
			pseudoResult := pseudo.Results()[0].Get()
			iv.compound.addInterval(pseudoResult, origin)
			c.ivByValue[pseudoResult] = lastOf(iv.compound)

			edge.Alias.Assign(pseudoResult)
			c.log.Tracef("collect: lowered data-flow edge %s -> %s via pseudo-move at %s", src.Label, bb.Label, origin)
		}
	}
}

// visitBlockInstructions lowers every instruction in bb in program order,
// opening a fresh compound for each result and routing in-place
// operands through a PseudoMoveSingle into their own fresh compound
// (fuse-vs-reassociate is decided later, by the rewriter, from the real
// allocation). Instructions the pass inserts (pseudo-moves) are never
// themselves revisited: the walk runs over a snapshot of bb's
// instruction list taken up front.
func (c *collector) visitBlockInstructions(bb *lir.BasicBlock) {
	snapshot := append([]lir.Instruction(nil), bb.Instructions()...)

	for _, inst := range snapshot {
		switch inst.Kind() {
		case x64.KindMovMC:
			mc := inst.(*x64.MovMC)
			c.defineResult(bb, inst, mc.Result.Get(), x64.MaskFirstFour)
		case x64.KindMovMR:
			mr := inst.(*x64.MovMR)
			c.defineResult(bb, inst, mr.Result.Get(), x64.MaskFirstFour)
		case x64.KindMovRMWithOffset:
			mo := inst.(*x64.MovRMWithOffset)
			c.defineResult(bb, inst, mo.Result.Get(), x64.MaskFirstFour)
		case x64.KindNegM:
			n := inst.(*x64.NegM)
			c.fuseOrReassociate(bb, inst, &n.Primary, x64.MaskFirstFour, n.Result.Get())
		case x64.KindAddMR:
			a := inst.(*x64.AddMR)
			c.fuseOrReassociate(bb, inst, &a.Primary, x64.MaskFirstFour, a.Result.Get())
		case x64.KindAndMR:
			a := inst.(*x64.AndMR)
			c.fuseOrReassociate(bb, inst, &a.Primary, x64.MaskFirstFour, a.Result.Get())
		case x64.KindCall:
			c.lowerCall(bb, inst, inst.(*x64.Call))
		default:
			fatalf(categoryUnknownKind, "collect: instruction kind %d not recognized", inst.Kind())
		}
	}
}

// fuseOrReassociate implements the UnaryMInPlace/BinaryMRInPlace operand
// contract (spec §4.6.1, §4.4 step 2): use currently reads the value the
// instruction destroys and replaces with resultValue.
//
// A PseudoMoveSingle is always inserted ahead of inst, use is repointed
// at the copy, and the copy's result opens a fresh compound — masked
// with the in-place instruction's own constraint (mask), never
// borrowed from src's compound, since src may carry a narrower,
// unrelated fixed mask (a Call result pinned to rax, an ArgumentPhi
// pinned to one ABI register, ...) that has nothing to do with what
// this instruction's result is allowed to land in. Whether the pseudo
// ends up fused away (same register) or realized as a real MovMR
// (different registers) is decided later, from the actual allocation,
// by rewrite.go's lowerSingle — this pass never guesses.
func (c *collector) fuseOrReassociate(bb *lir.BasicBlock, inst lir.Instruction, use *lir.ValueUse, mask uint16, resultValue *lir.Value) {
	src := use.Target()
	if c.ivByValue[src] == nil {
		fatalf(categoryInvariant, "collect: %v reads a value with no recorded interval", inst)
	}

	pseudo := x64.NewPseudoMoveSingle(src)
	bb.InsertBefore(inst, pseudo)
	c.instBlock[pseudo] = bb
	use.Assign(pseudo.Results()[0].Get())

	pseudoOrigin := c.defineOriginOnly(bb, pseudo)
	pIv := c.newCompoundFor(pseudo.Results()[0].Get(), pseudoOrigin, mask)

	resultOrigin := c.defineOriginOnly(bb, inst)
	pIv.compound.addInterval(resultValue, resultOrigin)
	c.ivByValue[resultValue] = lastOf(pIv.compound)
	c.log.Tracef("collect: lowered in-place operand %p via pseudo-move at %s", src, pseudoOrigin)
}

// lowerCall rewrites call's arguments through a single PseudoMoveMultiple
// constrained to the SysV argument registers in order (SPEC_FULL.md
// supplement 2), and opens call's result in the fixed Rax compound.
func (c *collector) lowerCall(bb *lir.BasicBlock, inst lir.Instruction, call *x64.Call) {
	n := len(call.Args)
	if n > len(x64.ArgRegisters) {
		fatalf(categoryABI, "call %q passes %d arguments, only %d fit in registers", call.Callee, n, len(x64.ArgRegisters))
	}

	if n > 0 {
		srcs := make([]*lir.Value, n)
		for i := range call.Args {
			srcs[i] = call.Args[i].Target()
		}

		pseudo := x64.NewPseudoMoveMultiple(srcs)
		bb.InsertBefore(inst, pseudo)
		c.instBlock[pseudo] = bb

		origin := c.defineOriginOnly(bb, pseudo)

		for i := range call.Args {
			mask, _ := x64.ArgMask(i)
			c.newCompoundFor(pseudo.ResultAt(i).Get(), origin, mask)
			call.Args[i].Assign(pseudo.ResultAt(i).Get())
		}
	}

	c.defineResult(bb, inst, call.Result.Get(), x64.MaskRax)
}

// finalizeFinalPcs computes every interval's finalPc now that every
// pseudo-move has been inserted and every operand use list is in its
// final shape. A value's finalPc is the latest point any ValueUse
// targeting it resolves to; values only read through a branch operand
// or an (already-rewritten) DataFlowEdge alias are extended to their
// block's exit point, since neither carries an Owner instruction a
// generic use-list scan can resolve.
func (c *collector) finalizeFinalPcs() {
	for _, cp := range c.compounds {
		for _, iv := range cp.Intervals {
			iv.finalPc = c.computeFinalPc(iv.value, iv.originPc)
		}
	}

	for _, bb := range c.fn.Blocks {
		exit := blockExitPC(c.order.of(bb), bb)

		if ret, ok := bb.Branch.(*lir.Ret); ok && ret.Operand != nil {
			c.extendTo(ret.Operand.Target(), exit)
		}

		for _, edge := range bb.OutgoingEdges {
			c.extendTo(edge.Alias.Target(), exit)
		}
	}
}

func (c *collector) computeFinalPc(value *lir.Value, origin pc) pc {
	best := origin

	for _, u := range value.Uses() {
		owner := u.Owner()
		if owner == nil {
			continue
		}

		bb, ok := c.instBlock[owner]
		if !ok {
			fatalf(categoryInvariant, "collect: instruction %v has no recorded block", owner)
		}

		idx := bb.IndexOfInstruction(owner)
		if idx < 0 {
			fatalf(categoryInvariant, "collect: instruction %v not found in its recorded block", owner)
		}

		if candidate := lastUseFinalPC(c.order.of(bb), bb, idx); candidate.compare(best) > 0 {
			best = candidate
		}
	}

	return best
}

func (c *collector) extendTo(value *lir.Value, at pc) {
	if value == nil {
		return
	}

	iv, ok := c.ivByValue[value]
	if !ok {
		return
	}

	if at.compare(iv.finalPc) > 0 {
		iv.finalPc = at
	}
}

func lastOf(cp *LiveCompound) *LiveInterval { return cp.Intervals[len(cp.Intervals)-1] }
