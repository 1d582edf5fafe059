package cfg

// ReduceLoops returns a copy of c in which every irreducible region
// (a strongly connected set of blocks entered from more than one
// place) is split into reducible form by node duplication (spec.md
// §4.4 Loop reduction). Per irreducible region: one entry is kept as
// the region's header; for every other, non-dominating entry the
// whole region is cloned and the clone wired with exactly that one
// entry, so the clone forms its own single-entry (hence reducible)
// loop and cannot itself violate reducibility. Regions are found with
// Tarjan's algorithm and each is processed once, so the pass always
// terminates: cloning strictly removes a violating entry edge from
// the original region and never reintroduces one, since a clone's
// only inbound edge is the redirected one.
func ReduceLoops(c *CFG) *CFG {
	dst := copyCFG(c)

	for _, scc := range tarjanSCCs(dst) {
		if len(scc) < 2 && !hasSelfLoop(scc) {
			continue
		}
		set := blockSet(scc)
		entries := sccEntries(dst, set)
		if len(entries) < 2 {
			continue // already single-entry: a legitimate reducible loop
		}
		for _, e2 := range entries[1:] {
			duplicateRegion(dst, set, e2)
		}
	}

	return dst
}

// copyCFG clones c block-for-block with identical edges, the starting
// point ReduceLoops mutates in place.
func copyCFG(c *CFG) *CFG {
	dst := New(c.Label)
	clone := map[*Block]*Block{c.Entry: dst.Entry, c.Exit: dst.Exit}
	for _, b := range c.Blocks {
		if b == c.Entry || b == c.Exit {
			continue
		}
		clone[b] = cloneBlock(dst, b)
	}
	for _, b := range c.Blocks {
		for _, e := range b.out {
			dst.AddEdge(clone[e.Source], clone[e.Sink], e.Kind)
		}
	}
	return dst
}

func blockSet(blocks []*Block) map[*Block]bool {
	set := make(map[*Block]bool, len(blocks))
	for _, b := range blocks {
		set[b] = true
	}
	return set
}

func hasSelfLoop(scc []*Block) bool {
	if len(scc) != 1 {
		return false
	}
	b := scc[0]
	for _, e := range b.out {
		if e.Sink == b {
			return true
		}
	}
	return false
}

// sccEntries returns, in c.Blocks order, every node of set that has an
// incoming edge from outside set.
func sccEntries(c *CFG, set map[*Block]bool) []*Block {
	var entries []*Block
	for _, b := range c.Blocks {
		if !set[b] {
			continue
		}
		for _, e := range b.in {
			if !set[e.Source] {
				entries = append(entries, b)
				break
			}
		}
	}
	return entries
}

// duplicateRegion clones every block of set and redirects every
// external edge into entry onto the clone of entry, leaving the
// original region's other entries (and their internal structure)
// untouched.
func duplicateRegion(c *CFG, set map[*Block]bool, entry *Block) {
	clone := make(map[*Block]*Block, len(set))
	for _, b := range c.Blocks {
		if set[b] {
			clone[b] = cloneBlock(c, b)
		}
	}
	for b, nb := range clone {
		for _, e := range b.out {
			if target, ok := clone[e.Sink]; ok {
				c.AddEdge(nb, target, e.Kind)
			} else {
				c.AddEdge(nb, e.Sink, e.Kind)
			}
		}
	}

	var external []*Edge
	for _, e := range entry.in {
		if !set[e.Source] {
			external = append(external, e)
		}
	}
	for _, e := range external {
		src, kind := e.Source, e.Kind
		c.RemoveEdge(e)
		c.AddEdge(src, clone[entry], kind)
	}
}

// tarjanSCCs computes the strongly connected components of c in
// dependency order (each component's own internal recursion resolved
// before it is appended), via the standard low-link algorithm.
func tarjanSCCs(c *CFG) [][]*Block {
	index := 0
	indices := map[*Block]int{}
	low := map[*Block]int{}
	onStack := map[*Block]bool{}
	var stack []*Block
	var sccs [][]*Block

	var strongconnect func(v *Block)
	strongconnect = func(v *Block) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range v.out {
			w := e.Sink
			if _, ok := indices[w]; !ok {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if indices[w] < low[v] {
					low[v] = indices[w]
				}
			}
		}

		if low[v] == indices[v] {
			var scc []*Block
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, b := range c.Blocks {
		if _, ok := indices[b]; !ok {
			strongconnect(b)
		}
	}
	return sccs
}
