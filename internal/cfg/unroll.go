package cfg

import "github.com/statinf-otawa/otawa-core/internal/domtree"

// Unroll produces a copy of c in which every innermost loop of forest
// is unrolled k times (spec.md §4.4 Loop unrolling): the whole loop
// body is cloned k times, chained so iteration i<k-1's back-edges
// redirect into iteration i+1's header instead of back into iteration
// i's own, while the last iteration's back-edges keep pointing at its
// own header, exposing first-iteration behavior without solving
// persistence explicitly. Blocks outside any innermost loop, and
// blocks belonging only to an outer (non-leaf) loop, get a single
// copy. k<2 is the identity (spec.md §4.4 invariant 4).
func Unroll(c *CFG, forest *domtree.Forest, k int) *CFG {
	dst := New(c.Label)
	reps := k
	if reps < 1 {
		reps = 1
	}

	owner := map[*Block]*domtree.Loop{} // block -> its unrolled (leaf) loop, if any
	if forest != nil {
		for _, b := range c.Blocks {
			if l := forest.InnermostLoop(b); l != nil && len(l.Children) == 0 {
				owner[b] = l
			}
		}
	}

	copyCount := func(b *Block) int {
		if owner[b] != nil {
			return reps
		}
		return 1
	}

	clones := make(map[*Block][]*Block, len(c.Blocks))
	clones[c.Entry] = []*Block{dst.Entry}
	clones[c.Exit] = []*Block{dst.Exit}
	for _, b := range c.Blocks {
		if b == c.Entry || b == c.Exit {
			continue
		}
		n := copyCount(b)
		cs := make([]*Block, n)
		for i := 0; i < n; i++ {
			cs[i] = cloneBlock(dst, b)
		}
		clones[b] = cs
	}

	target := func(b *Block, i int) *Block {
		cs := clones[b]
		if i < len(cs) {
			return cs[i]
		}
		return cs[len(cs)-1]
	}

	for _, b := range c.Blocks {
		cs := clones[b]
		for i, srcClone := range cs {
			for _, e := range b.out {
				sinkLoop := owner[e.Sink]
				idx := i
				if e.BackEdge && sinkLoop != nil && sinkLoop.Header == e.Sink {
					if i < len(cs)-1 {
						idx = i + 1
					}
					// last iteration: idx stays i, back-edge kept.
				} else if owner[e.Sink] == nil {
					idx = 0
				}
				dst.AddEdge(srcClone, target(e.Sink, idx), e.Kind)
			}
		}
	}

	return dst
}
