// Package lblock partitions basic blocks into l-blocks (C8,
// spec.md §4.7), grounded in the original otawa::LBlockBuilder
// (original_source _INDEX.md lists prog/LBlockBuilder among the cache
// sources): consecutive instructions of one basic block that fall in
// the same cache block collapse into a single l-block, and every
// l-block is filed under the cache set it belongs to, since the
// MUST/MAY/Persistence analyses (C9) solve one independent problem per
// set.
package lblock

import (
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/hardware"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/props"
)

// LBlock is one basic block's access to one cache block: the run of
// consecutive instructions, starting at First and ending at Last, that
// fall in cache block ID without an intervening access to a different
// block.
type LBlock struct {
	Index int // position in Set.LBlocks, also this l-block's cache-block rank within the set
	Block *cfg.Block
	ID    hardware.BlockID
	First *program.Instruction
	Last  *program.Instruction
	Props *props.Store // holds the l-block's workspace.Category once categorized
}

// Set collects, in program order, every l-block that falls in one
// cache set.
type Set struct {
	Index   int
	LBlocks []*LBlock
}

// Graph is the full l-block partition of a CFG collection against one
// cache.
type Graph struct {
	Cache *hardware.Cache
	Sets  []*Set

	byBlock map[*cfg.Block][]*LBlock   // l-blocks touching blk, in block order
	lastOf  map[blockIDKey]*LBlock     // last l-block of blk on cache block id
	firstOf map[blockIDKey]*LBlock     // first l-block of blk on cache block id
}

// blockIDKey identifies one basic block's run of accesses to one cache
// block (tag+set, not just set: two l-blocks of the same block that
// map to the same set but carry different tags are different cache
// blocks and must not share first/last bookkeeping).
type blockIDKey struct {
	block *cfg.Block
	id    hardware.BlockID
}

// Build partitions every basic block of col against cache, grounded on
// each instruction's own code address (spec.md §4.7 targets the
// instruction cache, whose block identity is known statically; a data
// cache partition would additionally need the value analysis this
// pipeline does not implement, per spec.md §1 Non-goals).
func Build(col *cfg.Collection, cache *hardware.Cache) *Graph {
	g := &Graph{
		Cache:   cache,
		byBlock: map[*cfg.Block][]*LBlock{},
		lastOf:  map[blockIDKey]*LBlock{},
		firstOf: map[blockIDKey]*LBlock{},
	}
	setByIndex := map[int]*Set{}

	for _, c := range col.CFGs {
		for _, blk := range c.Blocks {
			if blk.Tag != cfg.TagBasic {
				continue
			}
			g.partitionBlock(blk, cache, setByIndex)
		}
	}

	for i := 0; i < cache.Sets; i++ {
		if s, ok := setByIndex[i]; ok {
			g.Sets = append(g.Sets, s)
		} else {
			g.Sets = append(g.Sets, &Set{Index: i})
		}
	}
	return g
}

func (g *Graph) partitionBlock(blk *cfg.Block, cache *hardware.Cache, setByIndex map[int]*Set) {
	var cur *LBlock
	for _, ins := range blk.Instructions {
		id := cache.BlockIDOf(ins.Address)
		if cur != nil && cur.ID == id {
			cur.Last = ins
			continue
		}
		s, ok := setByIndex[id.Set]
		if !ok {
			s = &Set{Index: id.Set}
			setByIndex[id.Set] = s
		}
		cur = &LBlock{Index: len(s.LBlocks), Block: blk, ID: id, First: ins, Last: ins, Props: props.New()}
		s.LBlocks = append(s.LBlocks, cur)
		g.byBlock[blk] = append(g.byBlock[blk], cur)

		key := blockIDKey{blk, id}
		if _, ok := g.firstOf[key]; !ok {
			g.firstOf[key] = cur
		}
		g.lastOf[key] = cur
	}
}

// InBlock returns every l-block blk touches, in program order.
func (g *Graph) InBlock(blk *cfg.Block) []*LBlock { return g.byBlock[blk] }

// LastInBlock returns the last l-block blk accesses against cache
// block id (tag+set), the exact quantity the MUST/MAY/Persistence
// update functions need (original cache_MUSTProblem.cpp: "lblock :=
// last l-block of bb on this line; if present, inject its cache
// block").
func (g *Graph) LastInBlock(blk *cfg.Block, id hardware.BlockID) (*LBlock, bool) {
	l, ok := g.lastOf[blockIDKey{blk, id}]
	return l, ok
}

// FirstInBlock returns the first l-block blk accesses against cache
// block id (tag+set).
func (g *Graph) FirstInBlock(blk *cfg.Block, id hardware.BlockID) (*LBlock, bool) {
	l, ok := g.firstOf[blockIDKey{blk, id}]
	return l, ok
}

// Set returns the l-blocks filed under cache set s.
func (g *Graph) Set(s int) *Set { return g.Sets[s] }
