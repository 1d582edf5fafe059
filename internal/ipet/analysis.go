package ipet

import (
	"context"

	"github.com/statinf-otawa/otawa-core/internal/hardware"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/props"
	"github.com/statinf-otawa/otawa-core/internal/sched"
	"github.com/statinf-otawa/otawa-core/internal/workspace"
)

// Features the pipeline scheduler recognizes for this package's
// Analysis (spec.md §4.2).
const (
	FeatureWCET sched.Feature = "WCET"
)

// Features the pipeline expects as inputs before the WCET analysis can
// run; every other analysis package (cfg, domtree, flowfact loading)
// is responsible for establishing them.
const (
	FeatureCFGCollection sched.Feature = "cfg-collection"
)

// SolveAnalysis is the sched.Analysis that builds and solves the ILP
// system over the workspace's CFG collection and holds the WCET
// feature once it succeeds (spec.md §4.9-§4.11, C10-C12).
type SolveAnalysis struct {
	Solver  ilp.Solver
	Penalty CachePenalty

	// Ctx governs solver cancellation (spec.md §5's is_cancelled()
	// polling). A nil Ctx behaves as context.Background().
	Ctx context.Context
}

func (a *SolveAnalysis) Name() string                { return "ipet.solve" }
func (a *SolveAnalysis) Requires() []sched.Feature    { return []sched.Feature{FeatureCFGCollection} }
func (a *SolveAnalysis) Provides() []sched.Feature    { return []sched.Feature{FeatureWCET} }
func (a *SolveAnalysis) Invalidates() []sched.Feature { return nil }

// Run builds the ILP system from ws's CFG collection, platform cache
// description, and flow facts, then solves and back-annotates ws.
func (a *SolveAnalysis) Run(ws *workspace.Workspace) error {
	col := props.MustGet(ws.Props, workspace.CFGCollection)
	facts, _ := props.Get(ws.Props, workspace.FlowFacts)

	var icache, dcache *hardware.Cache
	if ws.Platform != nil {
		icache, dcache = ws.Platform.ICache, ws.Platform.DCache
	}

	ctx := a.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	sys := Build(col, icache, dcache, facts, a.Penalty)
	return Solve(ctx, ws, col, sys, a.Solver)
}
