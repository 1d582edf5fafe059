// Package workspace implements the single root of mutable pipeline
// state (spec.md §3 Ownership, §9 "Global mutable state"): the loaded
// program, the CFG collection once built, and every property the
// pipeline exposes "of record" (spec.md §6): task-entry,
// cfg-collection, WCET, per-block/edge count, per-l-block category,
// per-loop-header loop-count-max. The feature scheduler
// (internal/sched) drives analyses over a Workspace; the Workspace
// itself holds no scheduling logic, only the properties analyses
// read and write.
package workspace

import (
	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/flowfact"
	"github.com/statinf-otawa/otawa-core/internal/hardware"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/props"
)

// Workspace owns the loaded process and all derived analysis
// artifacts (spec.md §3 Ownership). Analyses borrow it through the
// feature registry; they attach results as properties but never free
// program-model objects.
type Workspace struct {
	File     *program.File
	Platform *hardware.Platform

	Props *props.Store // workspace-level properties (TaskEntry, CFGCollection, WCET, ...)
}

// New creates a Workspace over a loaded file and platform description.
func New(file *program.File, platform *hardware.Platform) *Workspace {
	return &Workspace{File: file, Platform: platform, Props: props.New()}
}

// Workspace-level properties of record (spec.md §6).
var (
	TaskEntry     = props.NewKey[address.Address]("task-entry")
	CFGCollection = props.NewKey[*cfg.Collection]("cfg-collection")
	WCET          = props.NewKey[int]("WCET")
	ILPSystem     = props.NewKey[*ilp.System]("ilp-system")
	FlowFacts     = props.NewKey[*flowfact.File]("flow-facts") // supplied by the host loader, nil if none given
	Warnings      = props.NewKey[[]cfg.Warning]("warnings")    // non-fatal conditions surfaced while building col (spec.md §8 E6)
)

// Per-block/per-edge/per-loop-header properties of record are keyed on
// the owning entity's own property store rather than the workspace's,
// since they are attached once per entity (spec.md §6 "on every block
// and edge" / "on every loop header"). Declared here so every analysis
// shares the same key. The per-l-block "category" property of record
// is internal/cache.CategoryKey / internal/cache.FirstMissHeaderKey,
// declared next to the Category type itself to avoid workspace<->cache
// import cycle (internal/cache already depends on internal/lblock).
var (
	Count          = props.NewKey[int]("count")           // on every cfg.Block / cfg.Edge
	LoopCountMax   = props.NewKey[int]("loop-count-max")   // on every loop header block
	LoopCountTotal = props.NewKey[int]("loop-count-total") // optional, on a loop header block
)
