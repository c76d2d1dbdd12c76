package lir

// ValueKind tags the variant of a Value. Base kinds live in the low range;
// architecture-specific packages (e.g. lir/x64) reserve kind ranges above
// ValueKindArchBase so a Value's provenance can be recovered without an
// import cycle back into the defining package.
type ValueKind int

const (
	// KindGeneric is a plain result with no placement constraint baked
	// into the value itself (constraints live on the owning instruction).
	KindGeneric ValueKind = iota
	// KindModeM marks a value that may live in a register or memory once
	// lowered (mode-M per the GLOSSARY). The allocator never hands out a
	// memory location (no-goals: no spilling), so in practice this is
	// observationally identical to KindModeR for this package, but the
	// tag is kept distinct so downstream instruction-encoding code (out
	// of scope here) can tell the two apart.
	KindModeM
	// KindModeR marks a register-only value.
	KindModeR

	// ValueKindArchBase is the first value kind index architecture
	// packages may use for their own, more specific tags (argument phi,
	// data-flow phi results, and so on).
	ValueKindArchBase ValueKind = 16384
)

// Value is a single producer of a datum consumed by instructions or phis.
// It owns a use list of every ValueUse currently pointing at it and, once
// the allocator has run, a concrete register index.
//
// A Value is never copied; callers always hold a *Value.
type Value struct {
	kind ValueKind

	// reg is the assigned physical register index, or -1 before
	// allocation. Spec P3 requires this be in [0, 16) for every
	// mode-M/mode-R value reachable from the function after Run.
	reg int

	head *ValueUse
	tail *ValueUse
}

// NewValue creates a detached Value of the given kind with no assigned
// register and an empty use list.
func NewValue(kind ValueKind) *Value {
	return &Value{kind: kind, reg: -1}
}

// Kind reports the Value's variant tag.
func (v *Value) Kind() ValueKind { return v.kind }

// Register returns the value's assigned physical register index, or -1 if
// none has been assigned yet.
func (v *Value) Register() int { return v.reg }

// SetRegister installs the concrete register index chosen by the
// allocator. Called exactly once per value by the rewriter (C6).
func (v *Value) SetRegister(reg int) { v.reg = reg }

// Uses returns the value's current uses, in use-list order, as a snapshot
// slice. Mutating the returned slice does not affect the value.
func (v *Value) Uses() []*ValueUse {
	var out []*ValueUse
	for u := v.head; u != nil; u = u.next {
		out = append(out, u)
	}

	return out
}

// HasUses reports whether any ValueUse currently targets v.
func (v *Value) HasUses() bool { return v.head != nil }

// attach appends u to v's use list. u must be detached (both target and
// list pointers nil) before calling.
func (v *Value) attach(u *ValueUse) {
	u.target = v
	u.prev = v.tail
	u.next = nil

	if v.tail != nil {
		v.tail.next = u
	} else {
		v.head = u
	}

	v.tail = u
}

// detach removes u from its current target's use list, if any. Safe to
// call on an already-detached use.
func (u *ValueUse) detach() {
	if u.target == nil {
		return
	}

	if u.prev != nil {
		u.prev.next = u.next
	} else {
		u.target.head = u.next
	}

	if u.next != nil {
		u.next.prev = u.prev
	} else {
		u.target.tail = u.prev
	}

	u.prev, u.next, u.target = nil, nil, nil
}

// ValueUse is a back-reference owned by an instruction operand slot or a
// DataFlowEdge alias, pointing at a Value and recording the owner that
// holds this slot. It is non-copyable in spirit: always mutate a
// ValueUse through Assign, never by overwriting the struct, or the
// use-list invariant (P1) breaks.
type ValueUse struct {
	target *Value
	owner  Instruction

	prev, next *ValueUse
}

// NewValueUse creates a detached use owned by owner. Assign it a target
// with Assign before reading Target.
func NewValueUse(owner Instruction) *ValueUse {
	return &ValueUse{owner: owner}
}

// Target returns the Value this use currently points at, or nil.
func (u *ValueUse) Target() *Value { return u.target }

// Owner returns the instruction that holds this operand slot, or nil for
// a ValueUse owned directly by a DataFlowEdge rather than an
// instruction.
func (u *ValueUse) Owner() Instruction { return u.owner }

// SetOwner records which instruction holds this operand slot. Concrete
// instruction constructors (lir/x64) call this once, right after
// building the instruction, so the collector can later map any use back
// to its position in a basic block.
func (u *ValueUse) SetOwner(owner Instruction) { u.owner = owner }

// Assign retargets u to v in O(1): detach from the old target's use list
// (if any) and attach to v's use list (if v is non-nil). Passing nil
// detaches u and leaves it unattached.
func (u *ValueUse) Assign(v *Value) {
	u.detach()

	if v != nil {
		v.attach(u)
	}
}

// ValueOrigin is the dual of ValueUse: a slot inside an instruction that
// uniquely owns a Value (the instruction's result). Set installs
// ownership; Get returns a borrow. Unlike ValueUse, a ValueOrigin's
// target has no back-link into a use list — it is itself the value's
// single point of origin.
type ValueOrigin struct {
	value *Value
}

// Set installs v as the value produced by this origin slot.
func (o *ValueOrigin) Set(v *Value) { o.value = v }

// Get returns the value owned by this origin slot, or nil if unset.
func (o *ValueOrigin) Get() *Value { return o.value }

// ReplaceAllUses detaches every ValueUse currently targeting self and
// reattaches it to other, preserving self's use-list order as a suffix
// of other's existing uses. After this call self.HasUses() is false.
//
// O(|uses|), matching spec §4.1's complexity requirement.
func ReplaceAllUses(self, other *Value) {
	if self == other {
		return
	}

	u := self.head
	for u != nil {
		next := u.next
		u.Assign(other)
		u = next
	}
}
