// Package domtree computes forward dominance over a CFG (C6, spec.md
// §4.5), grounded in the original otawa::Dominance bit-vector DFA
// (original_source/src/prog/util_Dominance.cpp): dom(entry) = {entry},
// dom(n) = {n} ∪ ⋂ dom(p) for every other block n, iterated to a
// fixpoint. Bit vectors are indexed by each block's position in a
// deterministic reverse-post-order walk, which also breaks ties for
// any later pass that needs a stable block ordering.
package domtree

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
)

// Tree is the dominance relation of one CFG.
type Tree struct {
	cfg   *cfg.CFG
	order []*cfg.Block       // reverse post-order, index == rpo number
	rpo   map[*cfg.Block]int // block -> rpo number
	dom   []*bitset.BitSet   // dom[rpo(n)] = set of rpo numbers of n's dominators
	idom  []*cfg.Block       // idom[rpo(n)] = immediate dominator of n
}

// Build computes the dominance tree of c, rooted at c.Entry.
func Build(c *cfg.CFG) *Tree {
	order := reversePostOrder(c)
	rpo := make(map[*cfg.Block]int, len(order))
	for i, b := range order {
		rpo[b] = i
	}
	n := len(order)

	dom := make([]*bitset.BitSet, n)
	for i := range dom {
		dom[i] = bitset.New(uint(n)).Complement() // all-bits, per the DFA's top element
	}
	dom[0] = bitset.New(uint(n))
	dom[0].Set(0) // dom(entry) = {entry}

	for {
		changed := false
		for i := 1; i < n; i++ {
			b := order[i]
			merged := intersectPreds(b, rpo, dom)
			merged.Set(uint(i))
			if !merged.Equal(dom[i]) {
				dom[i] = merged
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	t := &Tree{cfg: c, order: order, rpo: rpo, dom: dom, idom: make([]*cfg.Block, n)}
	t.idom[0] = nil
	for i := 1; i < n; i++ {
		t.idom[i] = t.computeIdom(i)
	}
	return t
}

// intersectPreds returns ⋂ dom(p) over b's predecessors whose source is
// already ordered, defaulting to the DFA's all-bits top element when b
// has no predecessors yet processed (e.g. unreachable blocks).
func intersectPreds(b *cfg.Block, rpo map[*cfg.Block]int, dom []*bitset.BitSet) *bitset.BitSet {
	var merged *bitset.BitSet
	for _, e := range b.In() {
		pi, ok := rpo[e.Source]
		if !ok {
			continue
		}
		if merged == nil {
			merged = dom[pi].Clone()
		} else {
			merged = merged.Intersection(dom[pi])
		}
	}
	if merged == nil {
		return bitset.New(uint(len(dom)))
	}
	return merged
}

// computeIdom picks the strict dominator of order[i] with the largest
// rpo number: dom sets form a chain under dominance, so the immediate
// dominator is always the closest one, i.e. the one with the highest
// index in reverse post-order.
func (t *Tree) computeIdom(i int) *cfg.Block {
	best := -1
	for j := uint(0); j < uint(len(t.order)); j++ {
		if !t.dom[i].Test(j) || int(j) == i {
			continue
		}
		if int(j) > best {
			best = int(j)
		}
	}
	if best < 0 {
		return nil
	}
	return t.order[best]
}

// IDom returns b's immediate dominator, or nil for the entry block.
func (t *Tree) IDom(b *cfg.Block) *cfg.Block {
	i, ok := t.rpo[b]
	if !ok {
		return nil
	}
	return t.idom[i]
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b *cfg.Block) bool {
	ai, aok := t.rpo[a]
	bi, bok := t.rpo[b]
	if !aok || !bok {
		return false
	}
	return t.dom[bi].Test(uint(ai))
}

// RPOIndex returns b's position in the tree's reverse-post-order walk,
// the deterministic tie-break ordering spec.md §4.5 asks for.
func (t *Tree) RPOIndex(b *cfg.Block) (int, bool) {
	i, ok := t.rpo[b]
	return i, ok
}

// Order returns the full reverse-post-order walk.
func (t *Tree) Order() []*cfg.Block { return t.order }

// reversePostOrder walks c from Entry in DFS post-order, then reverses.
func reversePostOrder(c *cfg.CFG) []*cfg.Block {
	visited := make(map[*cfg.Block]bool, len(c.Blocks))
	var post []*cfg.Block
	var visit func(b *cfg.Block)
	visit = func(b *cfg.Block) {
		if b == nil || visited[b] {
			return
		}
		visited[b] = true
		for _, e := range b.Out() {
			visit(e.Sink)
		}
		post = append(post, b)
	}
	visit(c.Entry)
	// Blocks unreachable from Entry (should not occur in a validated
	// CFG, but keep the walk total) are appended in declaration order.
	for _, b := range c.Blocks {
		visit(b)
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
