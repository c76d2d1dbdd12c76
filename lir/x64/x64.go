package x64

import (
	"fmt"

	"github.com/orizon-lang/x64regalloc/lir"
)

// Instruction kinds, reserved in the architecture range lir.KindArchBase
// defines. Order matches the roughly-in-scope list from spec §4.2.
const (
	KindMovMC lir.InstructionKind = lir.KindArchBase + iota
	KindMovMR
	KindMovRMWithOffset
	KindNegM
	KindAddMR
	KindAndMR
	KindCall
	KindPseudoMoveSingle
	KindPseudoMoveMultiple
	KindXchgMR
)

// MovMC loads an immediate constant into a fresh, unconstrained result
// (spec §4.2: 0 operands, 1 result; result free, mask 0x0F).
type MovMC struct {
	Imm    int64
	Result lir.ValueOrigin
}

// NewMovMC creates a MovMC loading imm into a fresh result value.
func NewMovMC(imm int64) *MovMC {
	m := &MovMC{Imm: imm}
	m.Result.Set(lir.NewValue(lir.KindModeM))

	return m
}

func (i *MovMC) Kind() lir.InstructionKind   { return KindMovMC }
func (i *MovMC) Operands() []*lir.ValueUse   { return nil }
func (i *MovMC) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *MovMC) String() string              { return fmt.Sprintf("movmc %d", i.Imm) }

// MovMR copies Operand into a fresh result register (UnaryMOverwrite:
// 1 operand, 1 result, result free). Used both as an ordinary move and,
// after the rewriter reassociates a pseudo-move to a new register, as
// the real move that realizes it.
type MovMR struct {
	Operand lir.ValueUse
	Result  lir.ValueOrigin
}

// NewMovMR creates a MovMR reading src into a fresh result value.
func NewMovMR(src *lir.Value) *MovMR {
	m := &MovMR{}
	m.Operand.Assign(src)
	m.Operand.SetOwner(m)
	m.Result.Set(lir.NewValue(lir.KindModeM))

	return m
}

func (i *MovMR) Kind() lir.InstructionKind   { return KindMovMR }
func (i *MovMR) Operands() []*lir.ValueUse   { return []*lir.ValueUse{&i.Operand} }
func (i *MovMR) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *MovMR) String() string              { return "movmr" }

// MovRMWithOffset loads from [Operand + Offset] into a fresh result
// (another UnaryMOverwrite family member, spec §4.2). The allocator
// treats it identically to MovMR; the offset only matters to the
// instruction-encoding pass, out of scope here.
type MovRMWithOffset struct {
	Operand lir.ValueUse
	Offset  int32
	Result  lir.ValueOrigin
}

// NewMovRMWithOffset creates a load of [src+offset] into a fresh result.
func NewMovRMWithOffset(src *lir.Value, offset int32) *MovRMWithOffset {
	m := &MovRMWithOffset{Offset: offset}
	m.Operand.Assign(src)
	m.Operand.SetOwner(m)
	m.Result.Set(lir.NewValue(lir.KindModeM))

	return m
}

func (i *MovRMWithOffset) Kind() lir.InstructionKind { return KindMovRMWithOffset }
func (i *MovRMWithOffset) Operands() []*lir.ValueUse { return []*lir.ValueUse{&i.Operand} }
func (i *MovRMWithOffset) Results() []*lir.ValueOrigin {
	return []*lir.ValueOrigin{&i.Result}
}
func (i *MovRMWithOffset) String() string {
	return fmt.Sprintf("movrm [+%d]", i.Offset)
}

// NegM negates Primary in place: UnaryMInPlace per spec §4.2. Primary is
// both consumed and produced, so the collector (C4) routes it through a
// PseudoMoveSingle before allocation.
type NegM struct {
	Primary lir.ValueUse
	Result  lir.ValueOrigin
}

// NewNegM creates a NegM reading and replacing primary.
func NewNegM(primary *lir.Value) *NegM {
	n := &NegM{}
	n.Primary.Assign(primary)
	n.Primary.SetOwner(n)
	n.Result.Set(lir.NewValue(lir.KindModeM))

	return n
}

func (i *NegM) Kind() lir.InstructionKind   { return KindNegM }
func (i *NegM) Operands() []*lir.ValueUse   { return []*lir.ValueUse{&i.Primary} }
func (i *NegM) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *NegM) String() string              { return "negm" }

// AddMR adds Secondary into Primary in place: BinaryMRInPlace per spec
// §4.2. Primary is consumed and replaced (routed through a pseudo-move
// like NegM's); Secondary is an ordinary read-only operand.
type AddMR struct {
	Primary   lir.ValueUse
	Secondary lir.ValueUse
	Result    lir.ValueOrigin
}

// NewAddMR creates an AddMR computing primary += secondary.
func NewAddMR(primary, secondary *lir.Value) *AddMR {
	a := &AddMR{}
	a.Primary.Assign(primary)
	a.Primary.SetOwner(a)
	a.Secondary.Assign(secondary)
	a.Secondary.SetOwner(a)
	a.Result.Set(lir.NewValue(lir.KindModeM))

	return a
}

func (i *AddMR) Kind() lir.InstructionKind { return KindAddMR }
func (i *AddMR) Operands() []*lir.ValueUse {
	return []*lir.ValueUse{&i.Primary, &i.Secondary}
}
func (i *AddMR) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *AddMR) String() string              { return "addmr" }

// AndMR is AddMR's bitwise-and sibling; the allocator's contract is
// identical (BinaryMRInPlace).
type AndMR struct {
	Primary   lir.ValueUse
	Secondary lir.ValueUse
	Result    lir.ValueOrigin
}

// NewAndMR creates an AndMR computing primary &= secondary.
func NewAndMR(primary, secondary *lir.Value) *AndMR {
	a := &AndMR{}
	a.Primary.Assign(primary)
	a.Primary.SetOwner(a)
	a.Secondary.Assign(secondary)
	a.Secondary.SetOwner(a)
	a.Result.Set(lir.NewValue(lir.KindModeM))

	return a
}

func (i *AndMR) Kind() lir.InstructionKind { return KindAndMR }
func (i *AndMR) Operands() []*lir.ValueUse {
	return []*lir.ValueUse{&i.Primary, &i.Secondary}
}
func (i *AndMR) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *AndMR) String() string              { return "andmr" }

// Call invokes Callee with Args constrained to ABI argument registers in
// order (SPEC_FULL.md supplement 2 extends this to the full six-register
// SysV sequence); its result is constrained to Rax.
type Call struct {
	Callee string
	Args   []lir.ValueUse
	Result lir.ValueOrigin
}

// NewCall creates a call to callee with the given argument values.
func NewCall(callee string, args ...*lir.Value) *Call {
	c := &Call{Callee: callee, Args: make([]lir.ValueUse, len(args))}

	for i, a := range args {
		c.Args[i].Assign(a)
		c.Args[i].SetOwner(c)
	}

	c.Result.Set(lir.NewValue(lir.KindModeM))

	return c
}

func (i *Call) Kind() lir.InstructionKind { return KindCall }
func (i *Call) Operands() []*lir.ValueUse {
	out := make([]*lir.ValueUse, len(i.Args))
	for j := range i.Args {
		out[j] = &i.Args[j]
	}

	return out
}
func (i *Call) Results() []*lir.ValueOrigin { return []*lir.ValueOrigin{&i.Result} }
func (i *Call) String() string              { return fmt.Sprintf("call %s/%d", i.Callee, len(i.Args)) }

// PseudoMoveSingle is an architectural no-op inserted by the collector
// (C4) to expose an in-place operand's register-sharing constraint to
// the allocator, and appended at the end of a source block, one per
// incoming data-flow edge, to carry that edge's value into its phi's
// compound; the rewriter (C6) always eliminates it before Run returns
// (spec P5).
type PseudoMoveSingle struct {
	Operand lir.ValueUse
	Result  lir.ValueOrigin
}

// NewPseudoMoveSingle creates a pseudo-move reading src, with a fresh
// result value.
func NewPseudoMoveSingle(src *lir.Value) *PseudoMoveSingle {
	p := &PseudoMoveSingle{}
	p.Operand.Assign(src)
	p.Operand.SetOwner(p)
	p.Result.Set(lir.NewValue(lir.KindModeM))

	return p
}

func (i *PseudoMoveSingle) Kind() lir.InstructionKind { return KindPseudoMoveSingle }
func (i *PseudoMoveSingle) Operands() []*lir.ValueUse { return []*lir.ValueUse{&i.Operand} }
func (i *PseudoMoveSingle) Results() []*lir.ValueOrigin {
	return []*lir.ValueOrigin{&i.Result}
}
func (i *PseudoMoveSingle) String() string { return "pseudomove.single" }

// PseudoMoveMultiple is a parallel copy {Results[i] <- Operands[i]},
// introduced by the collector for call-argument setup only, eliminated
// by the rewriter's move-sequencing pass (C6). Data-flow edges are not
// lowered through it: they get one PseudoMoveSingle each, so the copies
// at a block's end are sequential rather than parallel.
type PseudoMoveMultiple struct {
	operands []lir.ValueUse
	results  []lir.ValueOrigin
}

// NewPseudoMoveMultiple creates a pseudo parallel-copy of the given
// operands, with one fresh result value per operand.
func NewPseudoMoveMultiple(srcs []*lir.Value) *PseudoMoveMultiple {
	p := &PseudoMoveMultiple{
		operands: make([]lir.ValueUse, len(srcs)),
		results:  make([]lir.ValueOrigin, len(srcs)),
	}

	for i, s := range srcs {
		p.operands[i].Assign(s)
		p.operands[i].SetOwner(p)
		p.results[i].Set(lir.NewValue(lir.KindModeM))
	}

	return p
}

func (i *PseudoMoveMultiple) Kind() lir.InstructionKind { return KindPseudoMoveMultiple }
func (i *PseudoMoveMultiple) Operands() []*lir.ValueUse {
	out := make([]*lir.ValueUse, len(i.operands))
	for j := range i.operands {
		out[j] = &i.operands[j]
	}

	return out
}
func (i *PseudoMoveMultiple) Results() []*lir.ValueOrigin {
	out := make([]*lir.ValueOrigin, len(i.results))
	for j := range i.results {
		out[j] = &i.results[j]
	}

	return out
}

// ResultAt returns the origin slot for operand/result pair idx; arity is
// len(Operands()).
func (i *PseudoMoveMultiple) ResultAt(idx int) *lir.ValueOrigin { return &i.results[idx] }

// Arity reports how many parallel operand/result pairs this pseudo-move
// carries.
func (i *PseudoMoveMultiple) Arity() int { return len(i.operands) }

func (i *PseudoMoveMultiple) String() string {
	return fmt.Sprintf("pseudomove.multiple/%d", len(i.operands))
}

// XchgMR exchanges the contents of two registers in place: the only way
// a length-2 move cycle is realized without a scratch register
// (SPEC_FULL.md supplement 3, spec §4.6.2 step 5 / §9).
type XchgMR struct {
	A, B lir.ValueUse
	// ResultA and ResultB carry the post-exchange identities forward:
	// ResultA holds what was in B, ResultB holds what was in A.
	ResultA, ResultB lir.ValueOrigin
}

// NewXchgMR creates an exchange of a and b's current registers.
func NewXchgMR(a, b *lir.Value) *XchgMR {
	x := &XchgMR{}
	x.A.Assign(a)
	x.A.SetOwner(x)
	x.B.Assign(b)
	x.B.SetOwner(x)
	x.ResultA.Set(lir.NewValue(lir.KindModeM))
	x.ResultB.Set(lir.NewValue(lir.KindModeM))

	return x
}

func (i *XchgMR) Kind() lir.InstructionKind { return KindXchgMR }
func (i *XchgMR) Operands() []*lir.ValueUse { return []*lir.ValueUse{&i.A, &i.B} }
func (i *XchgMR) Results() []*lir.ValueOrigin {
	return []*lir.ValueOrigin{&i.ResultA, &i.ResultB}
}
func (i *XchgMR) String() string { return "xchgmr" }
