package cfg

// Virtualize inlines every resolved, non-recursive, not-do-not-inline
// synthetic call of c, transitively across the whole call chain, into
// a single flattened CFG (spec.md §4.4 Virtualizer). A call whose
// callee is already on the current inlining path is left in place and
// flagged Recursive instead of inlined, breaking what would otherwise
// be unbounded recursion; a call flagged DoNotInline (typically set
// from a `call ADDR ignore` flow fact) is likewise left in place.
// Virtualizing an already-virtualized CFG is idempotent: every
// remaining synthetic call is one that was refused last time for the
// same reason, so nothing further inlines.
func Virtualize(c *CFG) *CFG {
	dst := New(c.Label)
	v := &virtualizer{dst: dst}
	v.inlineOccurrence(c, dst.Entry, dst.Exit, map[*CFG]bool{c: true})
	return dst
}

type virtualizer struct {
	dst *CFG
}

// inlineOccurrence clones one occurrence of c into v.dst, with c's own
// Entry/Exit replaced by the caller-supplied proxies (the flattened
// predecessor/successor of wherever this occurrence was reached from),
// recursing into every inlinable call site. Each call site gets its
// own fresh proxy pair and its own recursive clone, so the same callee
// CFG inlined at two different call sites is duplicated, not aliased.
func (v *virtualizer) inlineOccurrence(c *CFG, entryProxy, exitProxy *Block, stack map[*CFG]bool) {
	entryOf := map[*Block]*Block{c.Entry: entryProxy, c.Exit: exitProxy}
	exitOf := map[*Block]*Block{c.Entry: entryProxy, c.Exit: exitProxy}
	inlinedHere := map[*Block]bool{}

	for _, b := range c.Blocks {
		if b == c.Entry || b == c.Exit {
			continue
		}
		if b.Tag == TagSyntheticCall && v.shouldInline(b, stack) {
			callee := b.Callee
			calleeEntry := v.dst.AddPhantom()
			calleeExit := v.dst.AddPhantom()
			entryOf[b] = calleeEntry
			exitOf[b] = calleeExit
			inlinedHere[b] = true
			v.inlineOccurrence(callee, calleeEntry, calleeExit, markedStack(stack, callee))
			continue
		}
		nb := cloneBlock(v.dst, b)
		if b.Tag == TagSyntheticCall {
			nb.Callee = b.Callee
			nb.Recursive = b.Callee != nil && stack[b.Callee]
			nb.DoNotInline = b.DoNotInline
		}
		entryOf[b] = nb
		exitOf[b] = nb
	}

	// Every edge of c, including the ones whose endpoint is a call
	// block that just got inlined, belongs to this occurrence: a call
	// block's own out-edges (what happens after the call returns) are
	// c's edges, not the callee's, even though the call block itself
	// was replaced by a phantom proxy pair above. The callee's
	// internal edges were already wired by the recursive call on a
	// disjoint block set (callee.Blocks), so there is no double wiring.
	for _, b := range c.Blocks {
		for _, e := range b.out {
			kind := e.Kind
			if kind == CallEdge && inlinedHere[e.Sink] {
				kind = Virtual
			}
			v.dst.AddEdge(exitOf[e.Source], entryOf[e.Sink], kind)
		}
	}
}

func (v *virtualizer) shouldInline(b *Block, stack map[*CFG]bool) bool {
	return b.Callee != nil && !b.DoNotInline && !stack[b.Callee]
}

func markedStack(stack map[*CFG]bool, c *CFG) map[*CFG]bool {
	next := make(map[*CFG]bool, len(stack)+1)
	for k := range stack {
		next[k] = true
	}
	next[c] = true
	return next
}

func cloneBlock(dst *CFG, b *Block) *Block {
	if b.Tag == TagBasic {
		return dst.AddBasicBlock(b.Instructions)
	}
	return dst.AddPhantom()
}
