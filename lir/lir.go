// Package lir defines a low-level, SSA-style intermediate representation
// close to the target instruction set: functions of basic blocks holding
// phis, instructions and a terminating branch, wired together by Values
// and their use lists. It is the IR shape the register allocator in
// package regalloc consumes and mutates.
package lir

import "fmt"

// InstructionKind tags the concrete shape of an Instruction (operand and
// result cardinality, fixed-register constraints). Base kinds are
// reserved here; lir/x64 defines the concrete x86-64 instruction kinds
// starting at KindArchBase.
type InstructionKind int

const (
	// KindArchBase is the first instruction kind index an architecture
	// package may define. See lir/x64 for the concrete x86-64 set.
	KindArchBase InstructionKind = 16384
)

// Instruction is an ordered element of a basic block's instruction list.
// Concrete variants (lir/x64.MovMC, lir/x64.AddMR, ...) expose their
// operand and result slots uniformly through Operands and Results. The
// allocator's collector still switches on Kind to reach the named
// fields (Result, Primary, Args) of each concrete variant.
type Instruction interface {
	// Kind reports the concrete instruction kind.
	Kind() InstructionKind
	// Operands returns the instruction's ValueUse slots, in the fixed
	// order the instruction defines (e.g. primary before secondary).
	Operands() []*ValueUse
	// Results returns the instruction's ValueOrigin slots.
	Results() []*ValueOrigin
	// String renders the instruction for diagnostics.
	String() string
}

// Branch is the terminator of a basic block.
type Branch interface {
	isBranch()
	String() string
}

// Ret is a function return, optionally reading one value (the return
// value). Operand is nil when the function returns nothing.
type Ret struct {
	Operand *ValueUse
}

func (*Ret) isBranch() {}
func (r *Ret) String() string {
	if r.Operand == nil || r.Operand.Target() == nil {
		return "ret"
	}

	return fmt.Sprintf("ret v%p", r.Operand.Target())
}

// Jmp is an unconditional jump to Target.
type Jmp struct {
	Target *BasicBlock
}

func (*Jmp) isBranch() {}
func (j *Jmp) String() string {
	if j.Target == nil {
		return "jmp <nil>"
	}

	return fmt.Sprintf("jmp %s", j.Target.Label)
}

// DataFlowEdge carries one incoming value of a DataFlowPhi: the block the
// value flows from, and a ValueUse "alias" that the collector (C4)
// rewrites in place as it threads the value through pseudo-moves.
type DataFlowEdge struct {
	Source *BasicBlock
	Alias  ValueUse
}

// PhiNode is a value materialized at block entry.
type PhiNode interface {
	isPhi()
	// Value returns the phi's single SSA output.
	Value() *Value
}

// ArgumentPhi represents a function-entry argument: its register is
// fixed by the calling convention rather than chosen by the allocator.
type ArgumentPhi struct {
	value Value
	// Mask constrains the compound built for this phi to exactly the
	// ABI-fixed register (a single bit set).
	Mask uint16
}

// NewArgumentPhi creates an argument phi fixed to the registers in mask
// (normally a single bit).
func NewArgumentPhi(mask uint16) *ArgumentPhi {
	return &ArgumentPhi{value: *NewValue(KindModeR), Mask: mask}
}

func (*ArgumentPhi) isPhi()           {}
func (p *ArgumentPhi) Value() *Value  { return &p.value }

// DataFlowPhi represents an SSA phi fed by DataFlowEdges, one per
// predecessor. All of its edges and its own value share one compound by
// construction (spec §4.4).
type DataFlowPhi struct {
	value Value
	Edges []*DataFlowEdge
}

// NewDataFlowPhi creates a data-flow phi with no edges yet.
func NewDataFlowPhi() *DataFlowPhi {
	return &DataFlowPhi{value: *NewValue(KindModeM)}
}

func (*DataFlowPhi) isPhi()          {}
func (p *DataFlowPhi) Value() *Value { return &p.value }

// AddEdge appends an incoming edge from source, with the given initial
// alias value, returning the edge so the caller can pass it along (the
// collector will later repoint Alias at a pseudo-move result).
func (p *DataFlowPhi) AddEdge(source *BasicBlock, alias *Value) *DataFlowEdge {
	e := &DataFlowEdge{Source: source}
	e.Alias.owner = nil
	e.Alias.Assign(alias)
	p.Edges = append(p.Edges, e)

	return e
}

// BasicBlock owns an ordered list of phis, an ordered list of
// instructions, and a terminating branch. It caches the position of each
// instruction for O(1) IndexOfInstruction lookups, invalidated on any
// insert or erase.
type BasicBlock struct {
	Label  string
	Phis   []PhiNode
	Branch Branch

	// OutgoingEdges lists the DataFlowEdges whose Source is this block
	// (spec §4.4: "the block's outbound data-flow edges"), populated by
	// the IR builder (out of scope) as DataFlowPhi.AddEdge calls are
	// made against successor blocks.
	OutgoingEdges []*DataFlowEdge

	insns []Instruction
	index map[Instruction]int
}

// NewBasicBlock creates an empty block with the given label.
func NewBasicBlock(label string) *BasicBlock {
	return &BasicBlock{Label: label}
}

// Instructions returns the block's instructions in order. The returned
// slice must not be mutated by the caller; use InsertBefore/Erase.
func (b *BasicBlock) Instructions() []Instruction { return b.insns }

// Append adds inst to the end of the block's instruction list.
func (b *BasicBlock) Append(inst Instruction) {
	b.insns = append(b.insns, inst)
	b.invalidateIndex()
}

// InsertBefore inserts inst immediately before cursor. If cursor is nil,
// inst is appended. Per spec §4.1, instructions the collector inserts
// this way are always assigned a lower index than cursor, and no
// previously-computed index for an instruction before cursor changes.
func (b *BasicBlock) InsertBefore(cursor Instruction, inst Instruction) {
	if cursor == nil {
		b.Append(inst)

		return
	}

	at := b.rawIndexOf(cursor)
	if at < 0 {
		panic("lir: InsertBefore: cursor not found in block")
	}

	b.insns = append(b.insns, nil)
	copy(b.insns[at+1:], b.insns[at:])
	b.insns[at] = inst
	b.invalidateIndex()
}

// Erase removes inst from the block's instruction list.
func (b *BasicBlock) Erase(inst Instruction) {
	at := b.rawIndexOf(inst)
	if at < 0 {
		panic("lir: Erase: instruction not found in block")
	}

	b.insns = append(b.insns[:at], b.insns[at+1:]...)
	b.invalidateIndex()
}

// IndexOfInstruction returns inst's position in the block's instruction
// list (P2: monotonic with iteration order), building and caching the
// index map on first use after invalidation.
func (b *BasicBlock) IndexOfInstruction(inst Instruction) int {
	if b.index == nil {
		b.index = make(map[Instruction]int, len(b.insns))
		for i, ins := range b.insns {
			b.index[ins] = i
		}
	}

	idx, ok := b.index[inst]
	if !ok {
		return -1
	}

	return idx
}

// rawIndexOf performs a linear scan; used only by mutators, which cannot
// rely on a cache that is about to become stale.
func (b *BasicBlock) rawIndexOf(inst Instruction) int {
	for i, ins := range b.insns {
		if ins == inst {
			return i
		}
	}

	return -1
}

func (b *BasicBlock) invalidateIndex() { b.index = nil }

// Function owns an ordered list of basic blocks.
type Function struct {
	Name   string
	Blocks []*BasicBlock

	// IRVersion is the semantic version of the IR format this function
	// was built against, stamped by the front-end. Create validates it
	// (DOMAIN STACK, SPEC_FULL.md).
	IRVersion string
}
