package ipet

import (
	"github.com/statinf-otawa/otawa-core/internal/cache"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/domtree"
	"github.com/statinf-otawa/otawa-core/internal/flowfact"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/lblock"
)

// StructuralConstraints adds flow-conservation over col (spec.md
// §4.10, C11): the entry and exit of every CFG carry exactly one
// execution, and every other basic block's own count equals both the
// sum of its incoming and the sum of its outgoing edge counts.
func StructuralConstraints(sys *ilp.System, col *cfg.Collection) {
	for _, c := range col.CFGs {
		addExactlyOne(sys, c.Entry, "entry")
		addExactlyOne(sys, c.Exit, "exit")
		// Entry has no in-edges and Exit has no out-edges by
		// construction (cfg.CFG.Validate), so only the applicable
		// side of conservation applies to them; the other side ties
		// their sole count to the edges actually present.
		addConservation(sys, c.Entry, false, true)
		addConservation(sys, c.Exit, true, false)
		for _, b := range c.Blocks {
			if b == c.Entry || b == c.Exit {
				continue
			}
			addConservation(sys, b, true, true)
		}
	}
}

func addConservation(sys *ilp.System, b *cfg.Block, wantIn, wantOut bool) {
	bv := BlockVar(sys, b)
	if wantIn {
		sys.AddConstraint(blockVarName(b)+"_in", append([]ilp.Term{{Coeff: -1, Var: bv}}, edgeTerms(sys, b.In())...), ilp.EQ, 0)
	}
	if wantOut {
		sys.AddConstraint(blockVarName(b)+"_out", append([]ilp.Term{{Coeff: -1, Var: bv}}, edgeTerms(sys, b.Out())...), ilp.EQ, 0)
	}
}

func addExactlyOne(sys *ilp.System, b *cfg.Block, suffix string) {
	v := BlockVar(sys, b)
	sys.AddConstraint(blockVarName(b)+"_"+suffix, []ilp.Term{{Coeff: 1, Var: v}}, ilp.EQ, 1)
}

func edgeTerms(sys *ilp.System, edges []*cfg.Edge) []ilp.Term {
	terms := make([]ilp.Term, 0, len(edges))
	for _, e := range edges {
		terms = append(terms, ilp.Term{Coeff: 1, Var: EdgeVar(sys, e)})
	}
	return terms
}

// entryEdges returns the edges into h whose source is not dominated by
// h (spec.md §4.10: "entry-edges = edges into h whose source is not
// dominated by h").
func entryEdges(tree *domtree.Tree, h *cfg.Block) []*cfg.Edge {
	var edges []*cfg.Edge
	for _, e := range h.In() {
		if !tree.Dominates(h, e.Source) {
			edges = append(edges, e)
		}
	}
	return edges
}

// LoopInfo bundles one CFG's dominance tree and loop forest, the two
// artifacts FlowFactConstraints and CacheConstraints both need to
// locate a loop header's entry edges.
type LoopInfo struct {
	Tree   *domtree.Tree
	Forest *domtree.Forest
}

// BuildLoopInfo computes the dominance tree and loop forest of every
// CFG in col, keyed by CFG so callers need run C6/C7 only once per
// collection.
func BuildLoopInfo(col *cfg.Collection) map[*cfg.CFG]*LoopInfo {
	info := make(map[*cfg.CFG]*LoopInfo, len(col.CFGs))
	for _, c := range col.CFGs {
		tree := domtree.Build(c)
		info[c] = &LoopInfo{Tree: tree, Forest: domtree.FindLoops(c, tree)}
	}
	return info
}

// EntryEdgesByHeader flattens info into a header -> entry-edges lookup
// spanning every CFG of the collection, the shape CacheConstraints
// needs to find a first-miss l-block's governing loop regardless of
// which CFG owns it.
func EntryEdgesByHeader(info map[*cfg.CFG]*LoopInfo) map[*cfg.Block][]*cfg.Edge {
	byHeader := map[*cfg.Block][]*cfg.Edge{}
	for _, li := range info {
		for header := range li.Forest.ByHeader {
			byHeader[header] = entryEdges(li.Tree, header)
		}
	}
	return byHeader
}

// FlowFactConstraints adds, for every loop header of c with a supplied
// bound, the per-invocation or total-iteration constraint of spec.md
// §4.10, C11: Σ back-edges(h) ≤ K · Σ entry-edges(h), or Σ back-edges(h)
// ≤ K_total when the fact instead supplies a total bound.
func FlowFactConstraints(sys *ilp.System, c *cfg.CFG, info *LoopInfo, facts *flowfact.File) {
	for header, loop := range info.Forest.ByHeader {
		addr := header.Address()
		lb, ok := facts.LoopBoundFor(addr)
		if !ok {
			continue
		}
		backTerms := edgeTerms(sys, loop.BackEdges)

		if lb.Total >= 0 {
			sys.AddConstraint("loop_total_"+blockVarName(header), backTerms, ilp.LE, float64(lb.Total))
			continue
		}

		entries := entryEdges(info.Tree, header)
		entryTerms := edgeTerms(sys, entries)
		scaled := make([]ilp.Term, len(entryTerms))
		for i, t := range entryTerms {
			scaled[i] = ilp.Term{Coeff: -float64(lb.Max), Var: t.Var}
		}
		sys.AddConstraint("loop_bound_"+blockVarName(header), append(backTerms, scaled...), ilp.LE, 0)
	}
}

// CacheConstraints adds, for every l-block of g restricted to cache set
// result.Set, the hit/miss decomposition of spec.md §4.10, C11: a
// fresh pair of hit/miss variables h_L, m_L with h_L + m_L = x_b,
// specialized per the l-block's category, with each miss contributing
// penalty·m_L to the objective. Only the first l-block a block
// references against a given cache block (tag+set, not merely the
// set) can ever miss — that access leaves the cache block resident
// for every later l-block of it within the block — so every other
// l-block of that (block, cache-block) pair is a plain always-hit and
// is skipped here; a block touching two distinct cache blocks on the
// same set (different tags) still gets one h_L/m_L pair each.
func CacheConstraints(sys *ilp.System, g *lblock.Graph, result *cache.Result, entryEdgesByHeader map[*cfg.Block][]*cfg.Edge, penalty int) {
	for _, l := range g.Set(result.Set).LBlocks {
		first, ok := g.FirstInBlock(l.Block, l.ID)
		if !ok || first != l {
			continue
		}

		bv := BlockVar(sys, l.Block)
		name := blockVarName(l.Block) + "_c" + itoa(result.Set) + "_t" + itoa(int(l.ID.Tag))
		hv := sys.NewVar(name + "_h")
		mv := sys.NewVar(name + "_m")
		sys.AddConstraint(name+"_split", []ilp.Term{{Coeff: 1, Var: hv}, {Coeff: 1, Var: mv}, {Coeff: -1, Var: bv}}, ilp.EQ, 0)

		switch result.Categories[l] {
		case cache.AlwaysHit:
			sys.AddConstraint(name+"_ah", []ilp.Term{{Coeff: 1, Var: mv}}, ilp.EQ, 0)
		case cache.AlwaysMiss:
			sys.AddConstraint(name+"_am", []ilp.Term{{Coeff: 1, Var: hv}}, ilp.EQ, 0)
		case cache.FirstMiss:
			if header, ok := result.Headers[l]; ok {
				entries := entryEdgesByHeader[header]
				terms := append([]ilp.Term{{Coeff: 1, Var: mv}}, negate(edgeTerms(sys, entries))...)
				sys.AddConstraint(name+"_fm", terms, ilp.LE, 0)
			}
		case cache.NotClassified:
			// m_L free: no extra constraint.
		}

		if penalty != 0 {
			sys.Objective.Terms = append(sys.Objective.Terms, ilp.Term{Coeff: float64(penalty), Var: mv})
		}
	}
}

func negate(terms []ilp.Term) []ilp.Term {
	out := make([]ilp.Term, len(terms))
	for i, t := range terms {
		out[i] = ilp.Term{Coeff: -t.Coeff, Var: t.Var}
	}
	return out
}
