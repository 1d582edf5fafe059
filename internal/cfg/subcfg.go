package cfg

import "github.com/statinf-otawa/otawa-core/internal/address"

// ExtractSubCFG builds the sub-CFG of c consisting of every block lying
// on some path from the basic block at start to any basic block at an
// address in stops (spec.md §4.4 Sub-CFG extraction): forward flood
// from start intersected with backward flood from stops, closed with a
// fresh synthetic entry wired to start and a fresh synthetic exit
// wired from every stop block actually kept.
//
// Returns nil if start does not resolve to a basic block of c.
func ExtractSubCFG(c *CFG, start address.Address, stops []address.Address) *CFG {
	startBlock := blockAt(c, start)
	if startBlock == nil {
		return nil
	}
	stopSet := map[address.Address]bool{}
	for _, a := range stops {
		stopSet[a] = true
	}

	forward := floodForward(startBlock)
	backward := floodBackward(c, stopSet)

	kept := map[*Block]bool{}
	for b := range forward {
		if backward[b] {
			kept[b] = true
		}
	}
	kept[startBlock] = true // start itself always belongs, even with no stops reachable

	dst := New(c.Label + ".sub")
	clone := map[*Block]*Block{}
	for _, b := range c.Blocks {
		if kept[b] {
			clone[b] = cloneBlock(dst, b)
		}
	}

	for b := range kept {
		for _, e := range b.out {
			if kept[e.Sink] {
				dst.AddEdge(clone[b], clone[e.Sink], e.Kind)
			}
		}
	}

	dst.AddEdge(dst.Entry, clone[startBlock], Virtual)
	for b := range kept {
		if stopSet[b.Address()] {
			dst.AddEdge(clone[b], dst.Exit, Virtual)
		}
	}
	// A kept block with no kept successor and no stop match would
	// otherwise violate cfg.Validate's "every basic block has a
	// successor" invariant; route it to exit as well, since it cannot
	// reach any stop along a kept edge only because its continuation
	// fell outside the flood.
	for b := range kept {
		if b.Tag == TagBasic && len(clone[b].out) == 0 {
			dst.AddEdge(clone[b], dst.Exit, Virtual)
		}
	}

	return dst
}

func blockAt(c *CFG, a address.Address) *Block {
	for _, b := range c.Blocks {
		if b.Tag == TagBasic && b.Address() == a {
			return b
		}
	}
	return nil
}

func floodForward(start *Block) map[*Block]bool {
	seen := map[*Block]bool{}
	stack := []*Block{start}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[b] {
			continue
		}
		seen[b] = true
		for _, e := range b.out {
			if !seen[e.Sink] {
				stack = append(stack, e.Sink)
			}
		}
	}
	return seen
}

func floodBackward(c *CFG, stops map[address.Address]bool) map[*Block]bool {
	seen := map[*Block]bool{}
	var stack []*Block
	for _, b := range c.Blocks {
		if b.Tag == TagBasic && stops[b.Address()] {
			stack = append(stack, b)
		}
	}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[b] {
			continue
		}
		seen[b] = true
		for _, e := range b.in {
			if !seen[e.Source] {
				stack = append(stack, e.Source)
			}
		}
	}
	return seen
}
