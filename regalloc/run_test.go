package regalloc

import (
	"strings"
	"testing"

	"github.com/orizon-lang/x64regalloc/lir"
	"github.com/orizon-lang/x64regalloc/lir/x64"
)

// retOf builds a Ret branch reading v.
func retOf(v *lir.Value) *lir.Ret {
	u := lir.NewValueUse(nil)
	u.Assign(v)

	return &lir.Ret{Operand: u}
}

func noPseudosRemain(t *testing.T, fn *lir.Function) {
	t.Helper()

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions() {
			switch inst.Kind() {
			case x64.KindPseudoMoveSingle, x64.KindPseudoMoveMultiple:
				t.Errorf("block %s still contains a pseudo-move after Run: %v", bb.Label, inst)
			}
		}
	}
}

func countKind(bb *lir.BasicBlock, kind lir.InstructionKind) int {
	n := 0

	for _, inst := range bb.Instructions() {
		if inst.Kind() == kind {
			n++
		}
	}

	return n
}

// TestConstAndNegate is spec §8 scenario 1.
func TestConstAndNegate(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	mc := x64.NewMovMC(5)
	bb.Append(mc)
	v1 := mc.Result.Get()

	neg := x64.NewNegM(v1)
	bb.Append(neg)
	v2 := neg.Result.Get()

	bb.Branch = retOf(v2)

	fn := &lir.Function{Name: "const_negate", Blocks: []*lir.BasicBlock{bb}}

	rec := NewRecordingLogger()

	pass, err := Create(fn, WithLogger(rec))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pass.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(rec.String(), "lowered in-place operand") {
		t.Error("collect should route NegM's in-place primary through a PseudoMoveSingle (spec §4.4 step 2), not fuse it into the producer's own compound")
	}

	noPseudosRemain(t, fn)

	if v1.Register() != v2.Register() {
		t.Errorf("v1.Register()=%d, v2.Register()=%d, want equal (fused)", v1.Register(), v2.Register())
	}

	if v2.Register() != x64.Rax {
		t.Errorf("v2.Register()=%d, want %d (rax, mask 0x0F first-fit)", v2.Register(), x64.Rax)
	}

	if countKind(bb, x64.KindMovMR) != 0 {
		t.Error("fusing a same-register pseudo-move should not emit a MovMR")
	}

	if neg.Primary.Target() == nil || neg.Primary.Target().Register() != v1.Register() {
		t.Error("NegM's primary should end up reading from the same register it's allocated to")
	}
}

// TestConstAndAdd is spec §8 scenario 2.
func TestConstAndAdd(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	mc1 := x64.NewMovMC(3)
	bb.Append(mc1)
	v1 := mc1.Result.Get()

	mc2 := x64.NewMovMC(4)
	bb.Append(mc2)
	v2 := mc2.Result.Get()

	add := x64.NewAddMR(v1, v2)
	bb.Append(add)
	v3 := add.Result.Get()

	bb.Branch = retOf(v3)

	fn := &lir.Function{Name: "const_add", Blocks: []*lir.BasicBlock{bb}}

	rec := NewRecordingLogger()

	pass, err := Create(fn, WithLogger(rec))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pass.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(rec.String(), "lowered in-place operand") {
		t.Error("collect should route AddMR's in-place primary through a PseudoMoveSingle (spec §4.4 step 2), not fuse it into the producer's own compound")
	}

	noPseudosRemain(t, fn)

	if v3.Register() != v1.Register() {
		t.Errorf("v3.Register()=%d, v1.Register()=%d, want equal (v3 fuses into v1's compound)", v3.Register(), v1.Register())
	}

	for _, v := range []*lir.Value{v1, v2, v3} {
		if v.Register() < 0 || v.Register() >= x64.NumRegisters {
			t.Errorf("value %p has register %d outside [0,%d)", v, v.Register(), x64.NumRegisters)
		}
	}
}

// TestInPlaceOperandAfterFixedMaskProducerGetsOwnMask guards against a
// fuseOrReassociate fast path that used to reuse the in-place operand's
// own producing compound (and its mask) whenever that operand had
// exactly one use, instead of always opening a fresh compound masked
// with the in-place instruction's own constraint. v1 here is a Call
// result, fixed to a single bit (rax); NegM's result must still get the
// free 0x0F mask its own kind requires, in a compound of its own,
// regardless of what register v1 happened to be pinned to.
func TestInPlaceOperandAfterFixedMaskProducerGetsOwnMask(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	call := x64.NewCall("f")
	bb.Append(call)
	v1 := call.Result.Get()

	neg := x64.NewNegM(v1)
	bb.Append(neg)
	v2 := neg.Result.Get()

	bb.Branch = retOf(v2)

	fn := &lir.Function{Name: "negate_after_call", Blocks: []*lir.BasicBlock{bb}}

	compounds := collect(fn, nil)

	if n := countKind(bb, x64.KindPseudoMoveSingle); n != 1 {
		t.Fatalf("NegM's in-place primary must be lowered through exactly one PseudoMoveSingle (spec §4.4 step 2), got %d", n)
	}

	var v1Compound, v2Compound *LiveCompound

	for _, cp := range compounds {
		for _, iv := range cp.Intervals {
			switch iv.Value() {
			case v1:
				v1Compound = cp
			case v2:
				v2Compound = cp
			}
		}
	}

	if v1Compound == nil || v2Compound == nil {
		t.Fatal("expected a compound each for the call result and NegM's result")
	}

	if v1Compound == v2Compound {
		t.Fatal("NegM's result must not share the call result's compound: they have independent register constraints")
	}

	if v2Compound.PossibleRegisters != x64.MaskFirstFour {
		t.Errorf("NegM's result mask = %#04x, want %#04x (x64.MaskFirstFour), not the call result's rax-only mask", v2Compound.PossibleRegisters, x64.MaskFirstFour)
	}

	allocate(compounds, nil)
	rewrite(fn, compounds, nil)

	noPseudosRemain(t, fn)

	if v2.Register() < 0 || v2.Register() >= x64.NumRegisters {
		t.Errorf("v2 register out of range: %d", v2.Register())
	}
}

// TestThreeLiveOverlap is spec §8 scenario 3: three constants live
// simultaneously then summed pairwise.
func TestThreeLiveOverlap(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	mc1 := x64.NewMovMC(1)
	bb.Append(mc1)
	v1 := mc1.Result.Get()

	mc2 := x64.NewMovMC(2)
	bb.Append(mc2)
	v2 := mc2.Result.Get()

	mc3 := x64.NewMovMC(3)
	bb.Append(mc3)
	v3 := mc3.Result.Get()

	add1 := x64.NewAddMR(v1, v2)
	bb.Append(add1)
	v4 := add1.Result.Get()

	add2 := x64.NewAddMR(v4, v3)
	bb.Append(add2)
	v5 := add2.Result.Get()

	bb.Branch = retOf(v5)

	fn := &lir.Function{Name: "three_live", Blocks: []*lir.BasicBlock{bb}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pass.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	noPseudosRemain(t, fn)

	regs := map[int]bool{v1.Register(): true, v2.Register(): true, v3.Register(): true}
	if len(regs) != 3 {
		t.Errorf("v1,v2,v3 registers = %d,%d,%d, want 3 distinct values", v1.Register(), v2.Register(), v3.Register())
	}

	for r := range regs {
		if r < 0 || r > 3 {
			t.Errorf("register %d outside {0,1,2,3} (mask 0x0F)", r)
		}
	}

	if v4.Register() != v1.Register() {
		t.Errorf("v4.Register()=%d, want v1.Register()=%d (fuse)", v4.Register(), v1.Register())
	}

	if v5.Register() != v4.Register() {
		t.Errorf("v5.Register()=%d, want v4.Register()=%d (fuse)", v5.Register(), v4.Register())
	}
}

// TestCallWithTwoArgs is spec §8 scenario 4.
func TestCallWithTwoArgs(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	mc1 := x64.NewMovMC(10)
	bb.Append(mc1)
	v1 := mc1.Result.Get()

	mc2 := x64.NewMovMC(20)
	bb.Append(mc2)
	v2 := mc2.Result.Get()

	call := x64.NewCall("fn", v1, v2)
	bb.Append(call)
	v3 := call.Result.Get()

	bb.Branch = retOf(v3)

	fn := &lir.Function{Name: "call_two_args", Blocks: []*lir.BasicBlock{bb}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pass.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	noPseudosRemain(t, fn)

	if call.Args[0].Target().Register() != x64.Rdi {
		t.Errorf("call arg 0 register = %d, want rdi (%d)", call.Args[0].Target().Register(), x64.Rdi)
	}

	if call.Args[1].Target().Register() != x64.Rsi {
		t.Errorf("call arg 1 register = %d, want rsi (%d)", call.Args[1].Target().Register(), x64.Rsi)
	}

	if v3.Register() != x64.Rax {
		t.Errorf("call result register = %d, want rax (%d)", v3.Register(), x64.Rax)
	}

	if n := countKind(bb, x64.KindMovMR); n > 2 {
		t.Errorf("call argument setup lowered to %d MovMRs, want at most 2", n)
	}
}

// TestCallTooManyArguments exercises the ABI-limit failure mode
// (SPEC_FULL.md supplement 2: the seventh SysV integer argument has no
// register to land in).
func TestCallTooManyArguments(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	args := make([]*lir.Value, 7)
	for i := range args {
		mc := x64.NewMovMC(int64(i))
		bb.Append(mc)
		args[i] = mc.Result.Get()
	}

	call := x64.NewCall("fn", args...)
	bb.Append(call)
	bb.Branch = retOf(call.Result.Get())

	fn := &lir.Function{Name: "too_many_args", Blocks: []*lir.BasicBlock{bb}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = pass.Run()
	if err == nil {
		t.Fatal("expected Run to fail for a 7-argument call")
	}

	ae, ok := err.(*allocError)
	if !ok || ae.category != categoryABI {
		t.Fatalf("error = %v, want an allocError in categoryABI", err)
	}
}

// TestTwoBlockDataFlowPhi is spec §8 scenario 5.
func TestTwoBlockDataFlowPhi(t *testing.T) {
	entry := lir.NewBasicBlock("entry")
	succ := lir.NewBasicBlock("succ")

	mc := x64.NewMovMC(42)
	entry.Append(mc)
	v1 := mc.Result.Get()
	entry.Branch = &lir.Jmp{Target: succ}

	phi := lir.NewDataFlowPhi()
	edge := phi.AddEdge(entry, v1)
	entry.OutgoingEdges = append(entry.OutgoingEdges, edge)
	succ.Phis = append(succ.Phis, phi)
	succ.Branch = retOf(phi.Value())

	fn := &lir.Function{Name: "dataflow_phi", Blocks: []*lir.BasicBlock{entry, succ}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := pass.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	noPseudosRemain(t, fn)

	if v1.Register() != phi.Value().Register() {
		t.Errorf("v1.Register()=%d, phi.Value().Register()=%d, want equal", v1.Register(), phi.Value().Register())
	}

	if countKind(entry, x64.KindMovMR) != 0 {
		t.Error("the trailing pseudo-move should fully fuse with no live register conflict, emitting no MovMR")
	}
}

// TestUnknownInstructionKindIsFatal covers the "unknown kind" failure
// mode (spec §4.4 point 4, §7).
func TestUnknownInstructionKindIsFatal(t *testing.T) {
	bb := lir.NewBasicBlock("entry")
	bb.Append(&unknownInst{})
	bb.Branch = &lir.Ret{}

	fn := &lir.Function{Name: "unknown_kind", Blocks: []*lir.BasicBlock{bb}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = pass.Run()
	if err == nil {
		t.Fatal("expected Run to fail for an unrecognized instruction kind")
	}

	ae, ok := err.(*allocError)
	if !ok || ae.category != categoryUnknownKind {
		t.Fatalf("error = %v, want an allocError in categoryUnknownKind", err)
	}
}

type unknownInst struct{}

func (*unknownInst) Kind() lir.InstructionKind   { return 999999 }
func (*unknownInst) Operands() []*lir.ValueUse   { return nil }
func (*unknownInst) Results() []*lir.ValueOrigin { return nil }
func (*unknownInst) String() string              { return "unknown" }

// TestRegisterExhaustion covers the no-spilling failure mode (spec §4.5
// point 3, Non-goals): two phis pinned to the very same single-bit mask
// are both live from block entry, so the second can never find a free
// register once the first has claimed the only bit its mask allows.
func TestRegisterExhaustion(t *testing.T) {
	bb := lir.NewBasicBlock("entry")

	p1 := lir.NewArgumentPhi(x64.MaskRax)
	p2 := lir.NewArgumentPhi(x64.MaskRax)
	bb.Phis = append(bb.Phis, p1, p2)
	bb.Branch = &lir.Ret{}

	fn := &lir.Function{Name: "exhausted", Blocks: []*lir.BasicBlock{bb}}

	pass, err := Create(fn)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = pass.Run()
	if err == nil {
		t.Fatal("expected Run to fail when no free register remains")
	}

	ae, ok := err.(*allocError)
	if !ok || ae.category != categoryExhausted {
		t.Fatalf("error = %v, want an allocError in categoryExhausted", err)
	}
}
