package cfg

import (
	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/errcode"
	"github.com/statinf-otawa/otawa-core/internal/program"
)

// Warning records a non-fatal condition surfaced during CFG
// construction (spec.md §4.4 step 5, §7 UnresolvedBranch).
type Warning struct {
	Err *errcode.Error
}

// Builder discovers basic blocks and materializes one CFG per
// call-reachable entry, per spec.md §4.4's abstract CFG builder
// algorithm.
type Builder struct {
	file      *program.File
	built     map[address.Address]*CFG
	pending   []address.Address
	queued    map[address.Address]bool
	warnings  []Warning
	callSites []callSite
}

// NewBuilder prepares a builder over file.
func NewBuilder(file *program.File) *Builder {
	return &Builder{
		file:   file,
		built:  make(map[address.Address]*CFG),
		queued: make(map[address.Address]bool),
	}
}

// Build constructs the CFG collection closed under call-reachability
// from taskEntry, per spec.md §4.4-§4.5 (closure step is deferred to
// NewCollection, which also numbers blocks globally).
func (b *Builder) Build(taskEntry address.Address) (*Collection, []Warning, error) {
	entryCFG, err := b.buildOne(taskEntry, symbolLabel(b.file, taskEntry))
	if err != nil {
		return nil, b.warnings, err
	}
	b.pending = append(b.pending, b.newCallTargets()...)
	for len(b.pending) > 0 {
		addr := b.pending[0]
		b.pending = b.pending[1:]
		if _, ok := b.built[addr]; ok {
			continue
		}
		if _, err := b.buildOne(addr, symbolLabel(b.file, addr)); err != nil {
			return nil, b.warnings, err
		}
		b.pending = append(b.pending, b.newCallTargets()...)
	}

	// Every call-reachable target has now been built; wire synthetic
	// call blocks to their callees.
	b.linkCalls()

	all := make([]*CFG, 0, len(b.built))
	for _, c := range b.built {
		all = append(all, c)
	}

	col := NewCollection(entryCFG, all)
	return col, b.warnings, nil
}

// newCallTargets returns call-site targets discovered so far that are
// neither built nor already queued for building.
func (b *Builder) newCallTargets() []address.Address {
	var fresh []address.Address
	for _, cs := range b.callSites {
		if _, ok := b.built[cs.target]; ok {
			continue
		}
		if b.queued[cs.target] {
			continue
		}
		b.queued[cs.target] = true
		fresh = append(fresh, cs.target)
	}
	return fresh
}

func symbolLabel(file *program.File, addr address.Address) string {
	if sym, ok := file.Symbols.ByAddress(addr); ok {
		return sym.Name
	}
	return addr.String()
}

// callSite remembers a synthetic call block awaiting its callee's CFG.
type callSite struct {
	block  *Block
	target address.Address
}

func (b *Builder) buildOne(entryAddr address.Address, label string) (*CFG, error) {
	if c, ok := b.built[entryAddr]; ok {
		return c, nil
	}
	entryInst := b.file.InstAt(entryAddr)
	if entryInst == nil {
		return nil, errcode.New(errcode.LoadError, "no instruction at entry address %s", entryAddr)
	}

	leaders := b.discoverLeaders(entryAddr)
	c := New(label)
	b.built[entryAddr] = c

	blockByLeader := make(map[address.Address]*Block, len(leaders))
	order := sortedAddresses(leaders)
	for i, leaderAddr := range order {
		var stop address.Address
		if i+1 < len(order) {
			stop = order[i+1]
		}
		insns := b.sliceBlock(leaderAddr, stop)
		if len(insns) == 0 {
			continue
		}
		blk := c.AddBasicBlock(insns)
		blockByLeader[leaderAddr] = blk
	}

	var calls []callSite
	for _, leaderAddr := range order {
		blk, ok := blockByLeader[leaderAddr]
		if !ok {
			continue
		}
		last := blk.Instructions[len(blk.Instructions)-1]
		calls = append(calls, b.wireSuccessors(c, blk, last, blockByLeader)...)
	}

	if len(calls) > 0 {
		b.callSites = append(b.callSites, calls...)
	}

	// Entry falls through to the first leader; exit catches returns
	// and the final fallthrough of a block with no explicit successor.
	if first, ok := blockByLeader[entryAddr]; ok {
		c.AddEdge(c.Entry, first, Virtual)
	}
	for _, blk := range c.Blocks {
		if blk.Tag == TagBasic && len(blk.out) == 0 {
			last := blk.Instructions[len(blk.Instructions)-1]
			if last.Kind.Has(program.Return) {
				c.AddEdge(blk, c.Exit, ReturnEdge)
			} else {
				// Falls off the end of the decoded range with no
				// successor block: close the CFG so the exit
				// invariant (spec.md §3) holds.
				c.AddEdge(blk, c.Exit, Virtual)
			}
		}
	}

	return c, nil
}

// discoverLeaders implements spec.md §4.4 steps 1-2: mark every seed as
// a leader, then mark the fall-through successor of any branch and
// every direct branch target, walking sequential instructions.
func (b *Builder) discoverLeaders(entryAddr address.Address) map[address.Address]bool {
	leaders := map[address.Address]bool{entryAddr: true}
	visited := map[address.Address]bool{}
	queue := []address.Address{entryAddr}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		for {
			if visited[addr] {
				break
			}
			visited[addr] = true
			ins := b.file.InstAt(addr)
			if ins == nil {
				break
			}
			if ins.Kind.Has(program.Branch) {
				if ins.Kind.Has(program.Call) {
					// A call's target is a separate function, built
					// as its own CFG via callSites; only the
					// fallthrough stays a leader of this one.
					if next := ins.End(); !leaders[next] {
						leaders[next] = true
						queue = append(queue, next)
					}
					break
				}
				if !ins.Kind.Has(program.Indirect) {
					if t := ins.Target; !leaders[t] {
						leaders[t] = true
						queue = append(queue, t)
					}
				}
				if ins.Kind.Has(program.Conditional) {
					if next := ins.End(); !leaders[next] {
						leaders[next] = true
						queue = append(queue, next)
					}
				}
				break
			}
			if ins.Kind.Has(program.Return) {
				break
			}
			addr = ins.End()
		}
	}
	return leaders
}

// sliceBlock collects the instructions from leaderAddr up to (and
// including) its terminating branch/return, or up to but excluding
// stop if no terminator is hit first (spec.md §4.4 step 3).
func (b *Builder) sliceBlock(leaderAddr, stop address.Address) []*program.Instruction {
	var insns []*program.Instruction
	addr := leaderAddr
	for {
		ins := b.file.InstAt(addr)
		if ins == nil {
			return insns
		}
		insns = append(insns, ins)
		if ins.Kind.Has(program.Branch) || ins.Kind.Has(program.Return) {
			return insns
		}
		addr = ins.End()
		if !stop.IsNull() && addr == stop {
			return insns
		}
	}
}

// wireSuccessors materializes outgoing edges for a block ending in
// last, per spec.md §4.4 step 4-5.
func (b *Builder) wireSuccessors(c *CFG, blk *Block, last *program.Instruction, blockByLeader map[address.Address]*Block) []callSite {
	var calls []callSite
	switch {
	case last.Kind.Has(program.Call):
		if last.Kind.Has(program.Indirect) {
			sink := c.unknownSink()
			c.AddEdge(blk, sink, CallEdge)
			b.warnings = append(b.warnings, Warning{Err: errcode.New(errcode.UnresolvedBranch, "indirect call at %s", last.Address)})
		} else {
			callBlk := c.AddSyntheticCall(nil)
			c.AddEdge(blk, callBlk, CallEdge)
			calls = append(calls, callSite{block: callBlk, target: last.Target})
			if next, ok := blockByLeader[last.End()]; ok {
				c.AddEdge(callBlk, next, NotTaken)
			} else {
				c.AddEdge(callBlk, c.Exit, Virtual)
			}
		}
	case last.Kind.Has(program.Return):
		c.AddEdge(blk, c.Exit, ReturnEdge)
	case last.Kind.Has(program.Branch) && last.Kind.Has(program.Indirect):
		sink := c.unknownSink()
		c.AddEdge(blk, sink, Taken)
		b.warnings = append(b.warnings, Warning{Err: errcode.New(errcode.UnresolvedBranch, "indirect branch at %s", last.Address)})
	case last.Kind.Has(program.Branch) && last.Kind.Has(program.Conditional):
		if target, ok := blockByLeader[last.Target]; ok {
			c.AddEdge(blk, target, Taken)
		}
		if next, ok := blockByLeader[last.End()]; ok {
			c.AddEdge(blk, next, NotTaken)
		}
	case last.Kind.Has(program.Branch):
		if target, ok := blockByLeader[last.Target]; ok {
			c.AddEdge(blk, target, Taken)
		}
	default:
		if next, ok := blockByLeader[last.End()]; ok {
			c.AddEdge(blk, next, Virtual)
		}
	}
	return calls
}

// linkCalls resolves every synthetic call block's callee. Build only
// calls this once every call-reachable target has been built, so every
// target is expected to resolve.
func (b *Builder) linkCalls() {
	for _, cs := range b.callSites {
		callee, ok := b.built[cs.target]
		if !ok {
			continue
		}
		cs.block.Callee = callee
		callee.Callers = append(callee.Callers, cs.block)
	}
}

func sortedAddresses(set map[address.Address]bool) []address.Address {
	out := make([]address.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	// simple insertion sort: leader sets are small in practice and this
	// keeps the package free of an extra sort.Slice closure per call.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
