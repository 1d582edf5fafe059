package dataflow

import (
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/domtree"
)

// loopContext adapts a domtree.Forest to Context, letting RunWithContext
// fire a ContextDomain's EnterContext/LeaveContext at loop-header and
// loop-exit edges (spec.md §4.6). Node ids are cfg.Block.Index, the
// same numbering NewForwardView/NewBackwardView use.
type loopContext struct {
	blocks []*cfg.Block
	forest *domtree.Forest
}

// NewLoopContext builds the Context for c's loop nest, as found by
// domtree.FindLoops. Pass the result to RunWithContext alongside a
// domain implementing ContextDomain[T] to get context-sensitive
// fixpoints (e.g. cache persistence, C9).
func NewLoopContext(c *cfg.CFG, forest *domtree.Forest) Context {
	return &loopContext{blocks: c.Blocks, forest: forest}
}

func (lc *loopContext) EnterHeader(pred, node int) (int, bool) {
	nodeBlock := lc.blocks[node]
	loop := lc.forest.ByHeader[nodeBlock]
	if loop == nil {
		return 0, false
	}
	predBlock := lc.blocks[pred]
	if loop.Contains(predBlock) {
		// Back edge re-entering a loop already on the stack: not a
		// fresh context.
		return 0, false
	}
	return node, true
}

func (lc *loopContext) ExitHeaders(pred, node int) []int {
	predBlock := lc.blocks[pred]
	nodeBlock := lc.blocks[node]
	var headers []int
	for l := lc.forest.InnermostLoop(predBlock); l != nil && !l.Contains(nodeBlock); l = l.Parent {
		headers = append(headers, l.Header.Index)
	}
	return headers
}

func (lc *loopContext) EnclosingLoops(node int) []int {
	var ids []int
	for l := lc.forest.InnermostLoop(lc.blocks[node]); l != nil; l = l.Parent {
		ids = append(ids, l.Header.Index)
	}
	return ids
}
