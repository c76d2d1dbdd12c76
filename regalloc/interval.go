package regalloc

import "github.com/orizon-lang/x64regalloc/lir"

// LiveCompound is a set of live intervals that must share one physical
// register (spec §3). PossibleRegisters constrains which bits of the
// 16-register file (lir/x64) the allocator may choose from; once
// allocated, AllocatedRegister holds the chosen index (-1 until then).
type LiveCompound struct {
	Intervals         []*LiveInterval
	PossibleRegisters uint16
	AllocatedRegister int
}

func newCompound(mask uint16) *LiveCompound {
	return &LiveCompound{PossibleRegisters: mask, AllocatedRegister: -1}
}

// addInterval creates a new LiveInterval for value, owned by this
// compound, and appends it to the compound. Nothing is inserted into an
// interval tree here; allocate inserts a compound's intervals once it
// has chosen the compound's register.
func (c *LiveCompound) addInterval(value *lir.Value, origin pc) *LiveInterval {
	iv := &LiveInterval{value: value, compound: c, originPc: origin, finalPc: origin}
	c.Intervals = append(c.Intervals, iv)

	return iv
}

// LiveInterval is the lifetime of one value within one compound (spec
// §3): originPc <= finalPc, with finalPc marking the point at which the
// value's last use has completed.
type LiveInterval struct {
	value    *lir.Value
	compound *LiveCompound
	originPc pc
	finalPc  pc

	seq int64 // tree insertion sequence, for deterministic tie-breaking
}

// Value returns the value this interval tracks.
func (iv *LiveInterval) Value() *lir.Value { return iv.value }

// Compound returns the compound this interval belongs to.
func (iv *LiveInterval) Compound() *LiveCompound { return iv.compound }

// overlaps reports whether iv's [originPc, finalPc] range intersects
// [lo, hi], inclusive on both endpoints (spec §4.3).
func (iv *LiveInterval) overlaps(lo, hi pc) bool {
	return !iv.finalPc.less(lo) && iv.originPc.compare(hi) <= 0
}

// intervalTree is an augmented binary search tree over LiveIntervals,
// keyed by (originPc, insertion sequence) and augmented with the
// maximum finalPc in each subtree, so overlap queries skip subtrees that
// cannot contain a match (spec §4.3, DESIGN NOTES: "avoid the O(n^2)
// blow-up of linear scans"). It is not self-balancing, so a query's cost
// depends on the tree's height, which insertion order decides; within the size
// of program this allocator targets (one function's worth of live
// ranges) that is not a practical concern, and a balancing scheme (AVL,
// red-black) would add bookkeeping spec never asks for.
type intervalTree struct {
	root    *treeNode
	nextSeq int64
}

type treeNode struct {
	iv       *LiveInterval
	left     *treeNode
	right    *treeNode
	maxFinal pc
}

func (t *intervalTree) insert(iv *LiveInterval) {
	iv.seq = t.nextSeq
	t.nextSeq++
	t.root = insertNode(t.root, iv)
}

func insertNode(n *treeNode, iv *LiveInterval) *treeNode {
	if n == nil {
		return &treeNode{iv: iv, maxFinal: iv.finalPc}
	}

	if less := keyLess(iv, n.iv); less {
		n.left = insertNode(n.left, iv)
	} else {
		n.right = insertNode(n.right, iv)
	}

	recalc(n)

	return n
}

func keyLess(a, b *LiveInterval) bool {
	if c := a.originPc.compare(b.originPc); c != 0 {
		return c < 0
	}

	return a.seq < b.seq
}

func recalc(n *treeNode) {
	m := n.iv.finalPc
	if n.left != nil && n.left.maxFinal.compare(m) > 0 {
		m = n.left.maxFinal
	}

	if n.right != nil && n.right.maxFinal.compare(m) > 0 {
		m = n.right.maxFinal
	}

	n.maxFinal = m
}

// remove deletes iv from the tree. iv must currently be inserted.
func (t *intervalTree) remove(iv *LiveInterval) {
	var ok bool
	t.root, ok = removeNode(t.root, iv)

	if !ok {
		fatalf(categoryInvariant, "interval tree: remove of interval not present")
	}
}

func removeNode(n *treeNode, iv *LiveInterval) (*treeNode, bool) {
	if n == nil {
		return nil, false
	}

	switch {
	case iv == n.iv:
		return spliceOut(n), true
	case keyLess(iv, n.iv):
		left, ok := removeNode(n.left, iv)
		n.left = left

		if ok {
			recalc(n)
		}

		return n, ok
	default:
		right, ok := removeNode(n.right, iv)
		n.right = right

		if ok {
			recalc(n)
		}

		return n, ok
	}
}

// spliceOut removes n itself, replacing it with its in-order successor
// (the leftmost node of its right subtree) when it has two children. The
// successor is removed from n.right via the ordinary recursive removeNode
// rather than unlinked by hand, so every ancestor on the path from
// n.right down to the successor gets its maxFinal recalculated on the way
// back up — a hand-spliced unlink would leave those stale.
func spliceOut(n *treeNode) *treeNode {
	switch {
	case n.left == nil:
		return n.right
	case n.right == nil:
		return n.left
	default:
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}

		newRight, _ := removeNode(n.right, succ.iv)
		succ.left = n.left
		succ.right = newRight
		recalc(succ)

		return succ
	}
}

// forOverlaps invokes f for every inserted interval whose [originPc,
// finalPc] intersects [lo, hi], inclusive on both endpoints (spec
// §4.3). Order of callbacks is unspecified.
func (t *intervalTree) forOverlaps(lo, hi pc, f func(*LiveInterval)) {
	forOverlapsNode(t.root, lo, hi, f)
}

func forOverlapsNode(n *treeNode, lo, hi pc, f func(*LiveInterval)) {
	if n == nil {
		return
	}

	if n.left != nil && !n.left.maxFinal.less(lo) {
		forOverlapsNode(n.left, lo, hi, f)
	}

	if n.iv.overlaps(lo, hi) {
		f(n.iv)
	}

	if n.iv.originPc.compare(hi) <= 0 {
		forOverlapsNode(n.right, lo, hi, f)
	}
}
