// Package dataflow implements the generic fixpoint engine (C7, spec.md
// §4.6) that every WCET lattice analysis (cache categorization, value
// ranges, ...) is built on: a Kildall-style worklist iteration over an
// abstract Graph view, parameterized on a lattice Domain.
package dataflow

import (
	"container/heap"

	"github.com/statinf-otawa/otawa-core/internal/cfg"
)

// Graph is the minimal view the engine needs of a flow graph: a dense
// node numbering plus predecessor/successor lookup. NewForwardView and
// NewBackwardView adapt a cfg.CFG; direction is baked into the
// adjacency the view reports rather than threaded through the engine.
type Graph interface {
	NodeCount() int
	Preds(node int) []int
	Succs(node int) []int
}

// Domain is an analysis' abstract lattice: how to start (Bottom), how
// to merge converging paths (Join), how to detect a fixpoint (Equal),
// and the block/edge transfer function.
type Domain[T any] interface {
	Bottom() T
	Join(a, b T) T
	Equal(a, b T) bool
	Transfer(node int, in T) T
}

// ContextDomain is a Domain with the optional loop-context transfer
// hooks of spec.md §4.6: a domain that needs to tell a loop's first
// crossing apart from its steady state (e.g. cache persistence)
// implements this in addition to Domain. EnterContext is applied to a
// predecessor's out-value when that edge crosses into header h from
// outside h's loop; LeaveContext is applied when an edge exits h's
// loop. Both are folded in during the per-predecessor merge, before
// Join.
type ContextDomain[T any] interface {
	Domain[T]
	EnterContext(header int, v T) T
	LeaveContext(header int, v T) T
}

// Context supplies the loop-crossing information RunWithContext needs
// to invoke a ContextDomain's hooks and to annotate listener visits
// with enclosing-loop-ids (spec.md §4.6). NewLoopContext adapts an
// internal/domtree loop forest.
type Context interface {
	// EnterHeader reports the loop header entered by the pred->node
	// edge, if node is a loop header and pred lies outside that loop.
	EnterHeader(pred, node int) (header int, ok bool)
	// ExitHeaders reports, innermost first, every loop header whose
	// loop the pred->node edge exits.
	ExitHeaders(pred, node int) []int
	// EnclosingLoops reports, innermost first, every loop header
	// enclosing node.
	EnclosingLoops(node int) []int
}

// cfgView adapts one cfg.CFG to Graph, numbering nodes by local block
// Index. backward swaps predecessor/successor so the same engine code
// drives both forward (value-range) and backward analyses.
type cfgView struct {
	blocks   []*cfg.Block
	backward bool
}

// NewForwardView numbers c's blocks by Index and reports true CFG
// adjacency (Preds = incoming edges' sources).
func NewForwardView(c *cfg.CFG) Graph { return &cfgView{blocks: c.Blocks} }

// NewBackwardView reports the same adjacency reversed, so a forward
// Kildall iteration over it computes a backward analysis.
func NewBackwardView(c *cfg.CFG) Graph { return &cfgView{blocks: c.Blocks, backward: true} }

func (v *cfgView) NodeCount() int { return len(v.blocks) }

func (v *cfgView) Preds(n int) []int {
	b := v.blocks[n]
	edges := b.In()
	if v.backward {
		edges = b.Out()
	}
	out := make([]int, 0, len(edges))
	for _, e := range edges {
		other := e.Source
		if v.backward {
			other = e.Sink
		}
		out = append(out, other.Index)
	}
	return out
}

func (v *cfgView) Succs(n int) []int {
	b := v.blocks[n]
	edges := b.Out()
	if v.backward {
		edges = b.In()
	}
	out := make([]int, 0, len(edges))
	for _, e := range edges {
		other := e.Sink
		if v.backward {
			other = e.Source
		}
		out = append(out, other.Index)
	}
	return out
}

// NodeStore is an array-indexed per-node value store (spec.md §9
// Design Notes: arena indexing keeps dataflow stores plain arrays).
type NodeStore[T any] struct{ values []T }

func NewNodeStore[T any](n int, bottom T) *NodeStore[T] {
	values := make([]T, n)
	for i := range values {
		values[i] = bottom
	}
	return &NodeStore[T]{values: values}
}

func (s *NodeStore[T]) Get(n int) T     { return s.values[n] }
func (s *NodeStore[T]) Set(n int, v T)  { s.values[n] = v }
func (s *NodeStore[T]) Len() int        { return len(s.values) }

// EdgeStore is a hash-keyed per-edge value store, for analyses whose
// natural unit is the edge rather than the block (e.g. l-block
// transitions in the cache analysis).
type EdgeStore[T any] struct{ values map[*cfg.Edge]T }

func NewEdgeStore[T any]() *EdgeStore[T] { return &EdgeStore[T]{values: map[*cfg.Edge]T{}} }

func (s *EdgeStore[T]) Get(e *cfg.Edge) (T, bool) { v, ok := s.values[e]; return v, ok }
func (s *EdgeStore[T]) Set(e *cfg.Edge, v T)      { s.values[e] = v }

// Listener observes each node's (re)computation: its merged-in and
// transferred-out value, how many times it has been visited so far,
// and (when a Context is in play) the loop headers enclosing it
// (spec.md §4.6).
type Listener[T any] interface {
	OnVisit(node int, in, out T, iteration int, loopIDs []int)
}

// Run iterates g to a fixpoint under dom, starting every node at
// Bottom and converging with the supplied worklist policy. Returns the
// merged-in and transferred-out value at every node. It is a thin
// wrapper over RunWithContext with no loop context: dom's transfer
// hooks never fire and every listener visit reports a nil loopIDs.
func Run[T any](g Graph, dom Domain[T], wl WorklistPolicy, listener Listener[T]) (in, out []T) {
	return RunWithContext(g, dom, wl, listener, nil)
}

// RunWithContext is Run plus an optional Context: when dom also
// implements ContextDomain[T], crossing a loop-header edge or an
// exit edge during the per-predecessor merge invokes EnterContext /
// LeaveContext before the value is joined in (spec.md §4.6 step 3a).
func RunWithContext[T any](g Graph, dom Domain[T], wl WorklistPolicy, listener Listener[T], ctx Context) (in, out []T) {
	n := g.NodeCount()
	in = make([]T, n)
	out = make([]T, n)
	visits := make([]int, n)
	for i := 0; i < n; i++ {
		in[i] = dom.Bottom()
		out[i] = dom.Bottom()
		wl.Push(i)
	}

	for {
		node, ok := wl.Pop()
		if !ok {
			break
		}
		merged := mergePreds(g, dom, out, node, ctx)
		in[node] = merged
		newOut := dom.Transfer(node, merged)
		visits[node]++
		if listener != nil {
			var loopIDs []int
			if ctx != nil {
				loopIDs = ctx.EnclosingLoops(node)
			}
			listener.OnVisit(node, merged, newOut, visits[node], loopIDs)
		}
		if dom.Equal(newOut, out[node]) {
			continue
		}
		out[node] = newOut
		for _, s := range g.Succs(node) {
			wl.Push(s)
		}
	}
	return in, out
}

func mergePreds[T any](g Graph, dom Domain[T], out []T, node int, ctx Context) T {
	preds := g.Preds(node)
	if len(preds) == 0 {
		return dom.Bottom()
	}
	cdom, _ := dom.(ContextDomain[T])
	valueFor := func(p int) T {
		v := out[p]
		if ctx == nil || cdom == nil {
			return v
		}
		for _, h := range ctx.ExitHeaders(p, node) {
			v = cdom.LeaveContext(h, v)
		}
		if h, ok := ctx.EnterHeader(p, node); ok {
			v = cdom.EnterContext(h, v)
		}
		return v
	}
	merged := valueFor(preds[0])
	for _, p := range preds[1:] {
		merged = dom.Join(merged, valueFor(p))
	}
	return merged
}

// WorklistPolicy orders pending node (re)visits. Implementations must
// be idempotent: pushing an already-queued node is a no-op.
type WorklistPolicy interface {
	Push(node int)
	Pop() (int, bool)
}

// FIFOWorklist processes nodes in push order; simple and always
// correct, but may revisit loop bodies more often than a rank-ordered
// policy before reaching the fixpoint.
type FIFOWorklist struct {
	queue  []int
	queued map[int]bool
}

func NewFIFOWorklist() *FIFOWorklist {
	return &FIFOWorklist{queued: map[int]bool{}}
}

func (w *FIFOWorklist) Push(node int) {
	if w.queued[node] {
		return
	}
	w.queued[node] = true
	w.queue = append(w.queue, node)
}

func (w *FIFOWorklist) Pop() (int, bool) {
	if len(w.queue) == 0 {
		return 0, false
	}
	node := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, node)
	return node, true
}

// RankWorklist processes nodes in ascending rank order (typically
// reverse-post-order from internal/domtree), which lets a forward
// Kildall iteration converge in a single pass over an acyclic region
// and minimizes loop-body revisits (spec.md §4.6 priority-by-rank
// worklist).
type RankWorklist struct {
	rank func(node int) int
	heap rankHeap
	in   map[int]bool
}

func NewRankWorklist(rank func(node int) int) *RankWorklist {
	return &RankWorklist{rank: rank, in: map[int]bool{}}
}

func (w *RankWorklist) Push(node int) {
	if w.in[node] {
		return
	}
	w.in[node] = true
	heap.Push(&w.heap, rankItem{node: node, rank: w.rank(node)})
}

func (w *RankWorklist) Pop() (int, bool) {
	if w.heap.Len() == 0 {
		return 0, false
	}
	item := heap.Pop(&w.heap).(rankItem)
	delete(w.in, item.node)
	return item.node, true
}

type rankItem struct {
	node, rank int
}

type rankHeap []rankItem

func (h rankHeap) Len() int            { return len(h) }
func (h rankHeap) Less(i, j int) bool  { return h[i].rank < h[j].rank }
func (h rankHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x interface{}) { *h = append(*h, x.(rankItem)) }
func (h *rankHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
