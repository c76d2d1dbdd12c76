package regalloc

import (
	"github.com/orizon-lang/x64regalloc/lir"
	"github.com/orizon-lang/x64regalloc/lir/x64"
)

// rewrite implements the post-allocation pass (C6): it commits every
// value's chosen register, then replaces each pseudo-move with the real
// x86-64 moves that realize it (or elides it entirely when source and
// destination turn out to have been allocated the same register).
func rewrite(fn *lir.Function, compounds []*LiveCompound, log Logger) {
	if log == nil {
		log = nopLogger{}
	}

	for _, cp := range compounds {
		for _, iv := range cp.Intervals {
			iv.value.SetRegister(cp.AllocatedRegister)
		}
	}

	for _, bb := range fn.Blocks {
		rewriteBlock(bb, log)
	}
}

// rewriteBlock walks a snapshot of bb's instructions (lowering mutates
// bb's live list as it goes) and lowers every pseudo-move found.
func rewriteBlock(bb *lir.BasicBlock, log Logger) {
	for _, inst := range append([]lir.Instruction(nil), bb.Instructions()...) {
		switch inst.Kind() {
		case x64.KindPseudoMoveSingle:
			lowerSingle(bb, inst, inst.(*x64.PseudoMoveSingle), log)
		case x64.KindPseudoMoveMultiple:
			lowerMultiple(bb, inst, inst.(*x64.PseudoMoveMultiple), log)
		}
	}
}

func lowerSingle(bb *lir.BasicBlock, cursor lir.Instruction, p *x64.PseudoMoveSingle, log Logger) {
	src := p.Operand.Target()
	dst := p.Results()[0].Get()

	if src.Register() == dst.Register() {
		// Fuse (spec §4.6.1): the pseudo's result and its operand already
		// share a register, so every consumer of dst can read src
		// directly instead; dst itself never needs a register of its own.
		lir.ReplaceAllUses(dst, src)
		log.Tracef("rewrite: fused %p into %p (pseudomove.single, %s)", dst, src, x64.RegisterName(src.Register()))
	} else {
		bb.InsertBefore(cursor, realMov(src, dst))
		log.Tracef("rewrite: %s <- %s (pseudomove.single)", x64.RegisterName(dst.Register()), x64.RegisterName(src.Register()))
	}

	bb.Erase(cursor)
}

func lowerMultiple(bb *lir.BasicBlock, cursor lir.Instruction, p *x64.PseudoMoveMultiple, log Logger) {
	moves := make([]moveSeqEntry, 0, p.Arity())

	for i := 0; i < p.Arity(); i++ {
		src := p.Operands()[i].Target()
		dst := p.ResultAt(i).Get()

		if src.Register() == dst.Register() {
			// Self-loop (spec §4.6.2, final paragraph): fuse before the
			// move graph is even built, same rule as the single-pseudo
			// fuse case above.
			lir.ReplaceAllUses(dst, src)
			continue
		}

		moves = append(moves, moveSeqEntry{src: src, dst: dst})
	}

	for _, real := range sequenceMoves(moves, log) {
		bb.InsertBefore(cursor, real)
	}

	bb.Erase(cursor)
}

// realMov builds a concrete register-to-register move. dst is the
// existing, already-allocated value the rest of the function refers to
// by pointer — apart from the scratch value realizeLongCycle creates to
// break a long move cycle, rewrite never fabricates a new result
// identity, only new instructions that produce the one already in play.
func realMov(src, dst *lir.Value) *x64.MovMR {
	m := &x64.MovMR{}
	m.Operand.Assign(src)
	m.Operand.SetOwner(m)
	m.Result.Set(dst)

	return m
}

// realXchg builds a concrete exchange breaking a 2-cycle: vA and vB are
// the values currently occupying the two registers being swapped; dA and
// dB are the destination identities that should be considered to occupy
// vB's and vA's registers respectively once the hardware swap completes
// (x64.XchgMR's own doc comment: "ResultA holds what was in B").
func realXchg(vA, dA, vB, dB *lir.Value) *x64.XchgMR {
	x := &x64.XchgMR{}
	x.A.Assign(vA)
	x.A.SetOwner(x)
	x.B.Assign(vB)
	x.B.SetOwner(x)
	x.ResultA.Set(dB)
	x.ResultB.Set(dA)

	return x
}
