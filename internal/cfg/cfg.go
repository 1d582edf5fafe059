// Package cfg implements the CFG model (C4): blocks, edges, CFGs, and
// CFG collections (spec.md §3, §4.4). Blocks and edges are arena-
// indexed inside their owning CFG/Collection rather than forming
// reference cycles, so dataflow stores can be plain arrays (spec.md §9
// Design Notes).
package cfg

import (
	"fmt"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/props"
)

// BlockTag discriminates the Block sum type (spec.md §3, §9: tagged
// variant, not virtual dispatch).
type BlockTag int

const (
	TagBasic BlockTag = iota
	TagEntry
	TagExit
	TagSyntheticCall
	TagPhantom
)

// Block is a CFG node. Exactly one of the tag-specific fields below is
// meaningful, selected by Tag.
type Block struct {
	// Index is this block's position in its owning CFG's Blocks slice.
	Index int
	// GlobalIndex is this block's position across an entire
	// Collection, assigned once the collection is built (spec.md §3
	// CFG collection: "numbers blocks globally for array-store
	// indexing").
	GlobalIndex int
	Tag         BlockTag
	CFG         *CFG

	// TagBasic
	Instructions []*program.Instruction

	// TagSyntheticCall
	Callee      *CFG // nil if unresolved
	Recursive   bool
	DoNotInline bool

	in  []*Edge
	out []*Edge

	Props *props.Store
}

func newBlock(tag BlockTag, cfgOwner *CFG) *Block {
	return &Block{Tag: tag, CFG: cfgOwner, Props: props.New()}
}

// In returns the block's incoming edges.
func (b *Block) In() []*Edge { return b.in }

// Out returns the block's outgoing edges.
func (b *Block) Out() []*Edge { return b.out }

// Address returns the address of a basic block's first instruction,
// or the null address for non-basic blocks.
func (b *Block) Address() address.Address {
	if b.Tag != TagBasic || len(b.Instructions) == 0 {
		return address.Null
	}
	return b.Instructions[0].Address
}

// EndAddress returns the address one past a basic block's last
// instruction byte.
func (b *Block) EndAddress() address.Address {
	if b.Tag != TagBasic || len(b.Instructions) == 0 {
		return address.Null
	}
	return b.Instructions[len(b.Instructions)-1].End()
}

func (b *Block) String() string {
	switch b.Tag {
	case TagEntry:
		return fmt.Sprintf("entry(%s)", b.CFG.Label)
	case TagExit:
		return fmt.Sprintf("exit(%s)", b.CFG.Label)
	case TagSyntheticCall:
		callee := "?"
		if b.Callee != nil {
			callee = b.Callee.Label
		}
		return fmt.Sprintf("call->%s", callee)
	case TagPhantom:
		return "phantom"
	default:
		return fmt.Sprintf("bb@%s", b.Address())
	}
}

// EdgeKind tags an Edge (spec.md §3, GLOSSARY).
type EdgeKind int

const (
	Taken EdgeKind = iota
	NotTaken
	CallEdge
	ReturnEdge
	Virtual
)

// Edge is an ordered (Source, Sink) pair tagged with a kind. BackEdge
// is computed by the loop analysis (internal/domtree) and stored here.
type Edge struct {
	Source, Sink *Block
	Kind         EdgeKind
	BackEdge     bool
	Props        *props.Store
}

func newEdge(src, sink *Block, kind EdgeKind) *Edge {
	return &Edge{Source: src, Sink: sink, Kind: kind, Props: props.New()}
}

// CFG is an ordered collection of blocks for one subroutine.
type CFG struct {
	Label   string
	Blocks  []*Block
	Entry   *Block
	Exit    *Block
	Unknown *Block // distinguished sink for unresolved indirect branches
	Callers []*Block // synthetic blocks in other CFGs that call this one
	Index   int       // this CFG's position in its Collection
}

// New creates an empty CFG with its entry and exit already materialized.
func New(label string) *CFG {
	c := &CFG{Label: label}
	c.Entry = c.addBlock(newBlock(TagEntry, c))
	c.Exit = c.addBlock(newBlock(TagExit, c))
	return c
}

func (c *CFG) addBlock(b *Block) *Block {
	b.Index = len(c.Blocks)
	c.Blocks = append(c.Blocks, b)
	return b
}

// AddBasicBlock appends a new basic block holding instructions.
func (c *CFG) AddBasicBlock(instructions []*program.Instruction) *Block {
	b := newBlock(TagBasic, c)
	b.Instructions = instructions
	return c.addBlock(b)
}

// AddSyntheticCall appends a synthetic call block referencing callee
// (nil if not yet resolved).
func (c *CFG) AddSyntheticCall(callee *CFG) *Block {
	b := newBlock(TagSyntheticCall, c)
	b.Callee = callee
	blk := c.addBlock(b)
	if callee != nil {
		callee.Callers = append(callee.Callers, blk)
	}
	return blk
}

// AddPhantom appends a placeholder block for a not-yet-built CFG.
func (c *CFG) AddPhantom() *Block {
	return c.addBlock(newBlock(TagPhantom, c))
}

// unknownSink lazily creates the CFG's single unresolved-indirect-
// branch sink (spec.md §4.4 step 5).
func (c *CFG) unknownSink() *Block {
	if c.Unknown == nil {
		c.Unknown = c.addBlock(newBlock(TagPhantom, c))
	}
	return c.Unknown
}

// AddEdge links src->sink with kind, updating both blocks' adjacency.
func (c *CFG) AddEdge(src, sink *Block, kind EdgeKind) *Edge {
	e := newEdge(src, sink, kind)
	src.out = append(src.out, e)
	sink.in = append(sink.in, e)
	return e
}

// RemoveEdge detaches e from both endpoints' adjacency lists.
func (c *CFG) RemoveEdge(e *Edge) {
	e.Source.out = removeEdge(e.Source.out, e)
	e.Sink.in = removeEdge(e.Sink.in, e)
}

func removeEdge(edges []*Edge, target *Edge) []*Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the structural invariants of spec.md §3: exactly one
// entry/exit, exit has no outgoing edges, entry has no incoming edges,
// every basic block has at least one successor or is the exit.
func (c *CFG) Validate() error {
	if c.Entry == nil || c.Exit == nil {
		return fmt.Errorf("cfg %s: missing entry or exit", c.Label)
	}
	if len(c.Entry.in) != 0 {
		return fmt.Errorf("cfg %s: entry has incoming edges", c.Label)
	}
	if len(c.Exit.out) != 0 {
		return fmt.Errorf("cfg %s: exit has outgoing edges", c.Label)
	}
	for _, b := range c.Blocks {
		if b.Tag == TagBasic && len(b.out) == 0 {
			return fmt.Errorf("cfg %s: basic block %s has no successors", c.Label, b)
		}
	}
	return nil
}

// Collection is a set of CFGs closed under call-reachability from the
// task entry, ordered leaves-first with the task entry at index 0 and
// blocks numbered globally (spec.md §3).
type Collection struct {
	CFGs       []*CFG
	blockByIdx []*Block
}

// NewCollection orders cfgs leaves-first (topological by the static
// call graph, callees before callers) with taskEntry forced to index
// 0, then assigns GlobalIndex to every block in that order.
func NewCollection(taskEntry *CFG, all []*CFG) *Collection {
	ordered := topoLeavesFirst(taskEntry, all)
	col := &Collection{CFGs: ordered}
	for i, c := range ordered {
		c.Index = i
	}
	// task entry must end at index 0 once fully computed: the leaves
	// come first, so move it to the front last.
	col.reindexTaskEntryFirst(taskEntry)
	col.assignGlobalIndices()
	return col
}

func (col *Collection) reindexTaskEntryFirst(taskEntry *CFG) {
	idx := -1
	for i, c := range col.CFGs {
		if c == taskEntry {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	reordered := make([]*CFG, 0, len(col.CFGs))
	reordered = append(reordered, taskEntry)
	for i, c := range col.CFGs {
		if i != idx {
			reordered = append(reordered, c)
		}
	}
	col.CFGs = reordered
	for i, c := range col.CFGs {
		c.Index = i
	}
}

func (col *Collection) assignGlobalIndices() {
	n := 0
	for _, c := range col.CFGs {
		for _, b := range c.Blocks {
			b.GlobalIndex = n
			col.blockByIdx = append(col.blockByIdx, b)
			n++
		}
	}
}

// BlockCount returns the total number of blocks across the collection.
func (col *Collection) BlockCount() int { return len(col.blockByIdx) }

// BlockByGlobalIndex returns the block with the given GlobalIndex.
func (col *Collection) BlockByGlobalIndex(i int) *Block { return col.blockByIdx[i] }

// topoLeavesFirst returns the CFGs reachable (by static call edges)
// from taskEntry, followed by any remaining CFG of all, ordered so that
// every callee precedes its callers.
func topoLeavesFirst(taskEntry *CFG, all []*CFG) []*CFG {
	visited := make(map[*CFG]bool)
	var order []*CFG
	var visit func(c *CFG)
	visit = func(c *CFG) {
		if c == nil || visited[c] {
			return
		}
		visited[c] = true
		for _, b := range c.Blocks {
			if b.Tag == TagSyntheticCall && b.Callee != nil {
				visit(b.Callee)
			}
		}
		order = append(order, c)
	}
	visit(taskEntry)
	for _, c := range all {
		visit(c)
	}
	return order
}
