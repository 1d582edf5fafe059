package ipet

import (
	"context"
	"math"

	"github.com/statinf-otawa/otawa-core/internal/cache"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/flowfact"
	"github.com/statinf-otawa/otawa-core/internal/hardware"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/lblock"
	"github.com/statinf-otawa/otawa-core/internal/props"
	"github.com/statinf-otawa/otawa-core/internal/workspace"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("otawa.ipet")

// CachePenalty is the miss penalty (cycles) charged against the
// objective for every miss on one cache level, supplied by the host
// the way block/edge times are (spec.md §4.9/§4.10: timing is always
// an external input, never computed by the core).
type CachePenalty struct {
	ICache int
	DCache int
}

// Build assembles col's full ILP system (spec.md §4.9/§4.10, C10/C11):
// one variable per block and edge, the maximize-time objective,
// structural flow conservation, flow-fact loop bounds, and (when the
// platform names a cache) the per-l-block cache hit/miss
// decomposition for every cache set.
func Build(col *cfg.Collection, icache, dcache *hardware.Cache, facts *flowfact.File, penalty CachePenalty) *ilp.System {
	sys := ilp.NewSystem()
	DeclareVars(sys, col)
	StructuralConstraints(sys, col)

	info := BuildLoopInfo(col)
	if facts != nil {
		for _, c := range col.CFGs {
			FlowFactConstraints(sys, c, info[c], facts)
		}
	}
	entryEdgesByHeader := EntryEdgesByHeader(info)

	addCacheConstraints(sys, col, icache, entryEdgesByHeader, penalty.ICache)
	addCacheConstraints(sys, col, dcache, entryEdgesByHeader, penalty.DCache)

	return sys
}

func addCacheConstraints(sys *ilp.System, col *cfg.Collection, c *hardware.Cache, entryEdgesByHeader map[*cfg.Block][]*cfg.Edge, penalty int) {
	if c == nil {
		return
	}
	g := lblock.Build(col, c)
	for _, cfgr := range col.CFGs {
		for set := 0; set < c.Sets; set++ {
			result := cache.AnalyzeSet(cfgr, g, set, c.Ways)
			result.Annotate()
			CacheConstraints(sys, g, result, entryEdgesByHeader, penalty)
		}
	}
}

// Solve submits sys to solver and, on success, back-annotates ws: WCET
// on the workspace and count on every block and edge (spec.md §4.11,
// C12). ILP values are read back as rationals and rounded to the
// nearest non-negative integer before being stored, per spec.md §5
// Ordering; the objective is stored as the solver's own integer value.
// On failure nothing is written: the workspace is left exactly as it
// was before Solve was called.
func Solve(ctx context.Context, ws *workspace.Workspace, col *cfg.Collection, sys *ilp.System, solver ilp.Solver) error {
	sol, err := solver.Solve(ctx, sys)
	if err != nil {
		log.Errorf("ILP solve failed: %s", err)
		return err
	}

	for _, c := range col.CFGs {
		for _, b := range c.Blocks {
			if v, ok := sys.Var(blockVarName(b)); ok {
				props.Set(b.Props, workspace.Count, roundNonNegative(sol.Values[v]))
			}
			for _, e := range b.Out() {
				if v, ok := sys.Var(edgeVarName(e)); ok {
					props.Set(e.Props, workspace.Count, roundNonNegative(sol.Values[v]))
				}
			}
		}
	}

	props.Set(ws.Props, workspace.WCET, int(math.Round(sol.Objective)))
	props.Set(ws.Props, workspace.ILPSystem, sys)
	log.Infof("WCET computed: %d cycles", int(math.Round(sol.Objective)))
	return nil
}

func roundNonNegative(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	return r
}
