package cache

import (
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/dataflow"
	"github.com/statinf-otawa/otawa-core/internal/domtree"
	"github.com/statinf-otawa/otawa-core/internal/lblock"
	"github.com/statinf-otawa/otawa-core/internal/props"
)

// CategoryKey and FirstMissHeaderKey are the l-block properties of
// record (spec.md §6 "category ... on every l-block"), attached by
// Annotate once AnalyzeSet has classified every l-block of a set.
var (
	CategoryKey        = props.NewKey[Category]("category")
	FirstMissHeaderKey = props.NewKey[*cfg.Block]("first-miss-header")
)

// Annotate writes r's classification onto each l-block's own property
// store, the mechanism IPET's cache constraint builder (C11) and the
// host tooling read back through (spec.md §4.1: "the sole mechanism
// by which analyses communicate their results").
func (r *Result) Annotate() {
	for l, cat := range r.Categories {
		props.Set(l.Props, CategoryKey, cat)
		if h, ok := r.Headers[l]; ok {
			props.Set(l.Props, FirstMissHeaderKey, h)
		}
	}
}

// Category is Ferdinand's classification of one l-block reference
// (spec.md §4.8).
type Category int

const (
	NotClassified Category = iota
	AlwaysHit
	AlwaysMiss
	FirstMiss
)

func (c Category) String() string {
	switch c {
	case AlwaysHit:
		return "always-hit"
	case AlwaysMiss:
		return "always-miss"
	case FirstMiss:
		return "first-miss"
	default:
		return "not-classified"
	}
}

// Result is the categorization of every l-block of one CFG against one
// cache set.
type Result struct {
	Set        int
	Categories map[*lblock.LBlock]Category
	// Headers holds, for every l-block classified FirstMiss, the loop
	// header whose first iteration bears the miss (spec.md §3 Category:
	// "first-miss is additionally parameterized by the loop header").
	Headers map[*lblock.LBlock]*cfg.Block
}

// AnalyzeSet runs Must, May, and Persistence over c restricted to
// cache set and classifies every l-block lb places on that set. Must
// and May are plain flat fixpoints; Persistence runs context-sensitive
// (dataflow.RunWithContext) so its frame stack tracks, per enclosing
// loop, what survives from one iteration to the next (spec.md §4.6,
// §4.8).
func AnalyzeSet(c *cfg.CFG, lb *lblock.Graph, set, ways int) *Result {
	accesses := accessesForSet(c.Blocks, lb, set)
	g := dataflow.NewForwardView(c)

	must := &MustDomain{Ways: ways, Accesses: accesses}
	mustIn, _ := dataflow.Run(g, must, dataflow.NewFIFOWorklist(), nil)

	may := &MayDomain{Ways: ways, Accesses: accesses}
	mayIn, _ := dataflow.Run(g, may, dataflow.NewFIFOWorklist(), nil)

	tree := domtree.Build(c)
	forest := domtree.FindLoops(c, tree)
	loopCtx := dataflow.NewLoopContext(c, forest)

	pers := &PersistenceDomain{Ways: ways, Accesses: accesses}
	persIn, _ := dataflow.RunWithContext(g, pers, dataflow.NewFIFOWorklist(), nil, loopCtx)

	result := &Result{Set: set, Categories: map[*lblock.LBlock]Category{}, Headers: map[*lblock.LBlock]*cfg.Block{}}
	for _, blk := range c.Blocks {
		if blk.Tag != cfg.TagBasic {
			continue
		}
		loop := forest.InnermostLoop(blk)
		for _, l := range lb.InBlock(blk) {
			if l.ID.Set != set {
				continue
			}
			cat := Classify(l.ID.Tag, ways, mustIn[blk.Index], mayIn[blk.Index], persIn[blk.Index], loop != nil)
			result.Categories[l] = cat
			if cat == FirstMiss && loop != nil {
				result.Headers[l] = loop.Header
			}
		}
	}
	return result
}

// Classify decides one l-block reference's category from the
// Must/May/Persistence states incoming to its owning block (spec.md
// §4.8): Always-Hit when Must proves residency; Always-Miss when May
// proves the block is absent on every path; First-Miss when the block
// is persistent w.r.t. its innermost enclosing loop context (present
// in that loop's Persistence frame with no ⊥ marker); Not-Classified
// otherwise. A block nested in several loops is judged against its
// innermost enclosing loop, this repo's resolution of spec.md's
// nested-loop open question.
func Classify(tag uint64, ways int, mustIn, mayIn ACS, persistIn PersState, inLoop bool) Category {
	if age, ok := mustIn.Age[tag]; ok && age < ways {
		return AlwaysHit
	}
	if _, ok := mayIn.Age[tag]; !ok {
		return AlwaysMiss
	}
	if inLoop {
		top := persistIn.Top()
		if age, ok := top.Age[tag]; ok && age < ways && !top.Wiped[tag] {
			return FirstMiss
		}
	}
	return NotClassified
}
