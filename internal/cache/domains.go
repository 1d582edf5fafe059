package cache

import (
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/lblock"
)

// BlockAccesses maps a CFG block's local Index to the ordered tags it
// references on one cache set, built by the caller from an
// internal/lblock.Graph filtered to that set.
type BlockAccesses map[int][]uint64

// MustDomain proves guaranteed hits: Join keeps a block only if every
// incoming path has it resident, aged to the worst (oldest) of the two.
type MustDomain struct {
	Ways     int
	Accesses BlockAccesses
}

func (d *MustDomain) Bottom() ACS { return newACS() }

func (d *MustDomain) Join(a, b ACS) ACS {
	out := newACS()
	for t, ageA := range a.Age {
		ageB, ok := b.Age[t]
		if !ok {
			continue
		}
		age := ageA
		if ageB > age {
			age = ageB
		}
		out.Age[t] = age
	}
	return out
}

func (d *MustDomain) Equal(a, b ACS) bool { return a.equal(b) }

func (d *MustDomain) Transfer(node int, in ACS) ACS {
	out := in
	for _, tag := range d.Accesses[node] {
		out = access(out, tag, d.Ways, true)
	}
	return out
}

// MayDomain proves guaranteed misses (by its absence): Join keeps a
// block if any incoming path has it resident, aged to the best
// (youngest) of the two.
type MayDomain struct {
	Ways     int
	Accesses BlockAccesses
}

func (d *MayDomain) Bottom() ACS { return newACS() }

func (d *MayDomain) Join(a, b ACS) ACS {
	out := newACS()
	for t, age := range a.Age {
		out.Age[t] = age
	}
	for t, age := range b.Age {
		if cur, ok := out.Age[t]; !ok || age < cur {
			out.Age[t] = age
		}
	}
	return out
}

func (d *MayDomain) Equal(a, b ACS) bool { return a.equal(b) }

func (d *MayDomain) Transfer(node int, in ACS) ACS {
	out := in
	for _, tag := range d.Accesses[node] {
		out = access(out, tag, d.Ways, true)
	}
	return out
}

// PersFrame is one context-stack frame of the Persistence domain
// (spec.md §4.8): like an ACS, but a block that ages off position
// A-1 is recorded in Wiped (the ⊥ marker) rather than forgotten, so a
// later leave_context can tell "never referenced in this loop" apart
// from "referenced, then evicted".
type PersFrame struct {
	Age   map[uint64]int
	Wiped map[uint64]bool
}

func newPersFrame() PersFrame { return PersFrame{Age: map[uint64]int{}, Wiped: map[uint64]bool{}} }

func (f PersFrame) equal(o PersFrame) bool {
	if len(f.Age) != len(o.Age) || len(f.Wiped) != len(o.Wiped) {
		return false
	}
	for t, age := range f.Age {
		if oa, ok := o.Age[t]; !ok || oa != age {
			return false
		}
	}
	for t := range f.Wiped {
		if !o.Wiped[t] {
			return false
		}
	}
	return true
}

// persAccess is access's Persistence-domain analog: a block aging past
// ways is marked ⊥ in the frame instead of disappearing.
func persAccess(f PersFrame, tag uint64, ways int) PersFrame {
	prevAge, present := f.Age[tag]
	if !present {
		prevAge = ways
	}
	out := newPersFrame()
	for t, age := range f.Age {
		if t == tag {
			continue
		}
		if age < prevAge {
			age++
		}
		if age >= ways {
			out.Wiped[t] = true
			continue
		}
		out.Age[t] = age
	}
	for t := range f.Wiped {
		if t != tag {
			out.Wiped[t] = true
		}
	}
	out.Age[tag] = 0
	return out
}

// joinPersFrame merges two converging paths through the same loop
// context: a block counts as present if either path has it (so that a
// loop's back edge and its one-time entry edge, which starts every
// frame empty, don't cancel each other out and erase everything a
// loop body builds up), aged to the worse (larger) of the two; ⊥ is
// sticky and wins over presence, so a path that evicted a block
// always overrides one that didn't.
func joinPersFrame(a, b PersFrame) PersFrame {
	out := newPersFrame()
	for t, age := range a.Age {
		out.Age[t] = age
	}
	for t, age := range b.Age {
		if cur, ok := out.Age[t]; !ok || age > cur {
			out.Age[t] = age
		}
	}
	for t := range a.Wiped {
		out.Wiped[t] = true
	}
	for t := range b.Wiped {
		out.Wiped[t] = true
	}
	return out
}

// unionWithDisplacement merges an exited loop's frame into its parent
// (spec.md §4.8 leave_context): the child's own state is freshest and
// wins outright; anything the parent tracked that the child never
// touched is aged by however many distinct blocks the loop body
// referenced (the worst-case number of evictions one iteration could
// impose), falling to ⊥ once that pushes it past the cache's ways.
// original_source ships MUSTPERS.h/.cpp (the Must+Persistence
// combinator) but not the Persistence domain's own PERSProblem source,
// so this displacement rule is this package's reading of spec.md §4.8
// rather than a transcription of upstream code.
func unionWithDisplacement(parent, child PersFrame, ways int) PersFrame {
	shift := len(child.Age) + len(child.Wiped)
	out := newPersFrame()
	for t, age := range parent.Age {
		if _, inChild := child.Age[t]; inChild {
			continue
		}
		if child.Wiped[t] {
			out.Wiped[t] = true
			continue
		}
		if age+shift >= ways {
			out.Wiped[t] = true
			continue
		}
		out.Age[t] = age + shift
	}
	for t, age := range child.Age {
		out.Age[t] = age
	}
	for t := range child.Wiped {
		out.Wiped[t] = true
	}
	for t := range parent.Wiped {
		if _, reloaded := child.Age[t]; reloaded {
			continue
		}
		out.Wiped[t] = true
	}
	return out
}

// PersState is a stack of PersFrame, one per loop context currently
// entered (index 0 is the outermost, always-present base context).
// EnterContext/LeaveContext push and pop frames as the fixpoint
// crosses loop-header and loop-exit edges (spec.md §4.6, §4.8).
type PersState struct {
	Frames []PersFrame
}

// PersistenceDomain declares a block persistent within a loop when,
// at the loop's own context frame, it sits at an age below ways with
// no ⊥ marker: present every time the loop body is entered or
// iterated, so at most the loop's first reference can miss.
type PersistenceDomain struct {
	Ways     int
	Accesses BlockAccesses
}

func (d *PersistenceDomain) Bottom() PersState { return PersState{Frames: []PersFrame{newPersFrame()}} }

func (d *PersistenceDomain) Join(a, b PersState) PersState {
	n := len(a.Frames)
	if len(b.Frames) > n {
		n = len(b.Frames)
	}
	frames := make([]PersFrame, n)
	for i := 0; i < n; i++ {
		fa, fb := newPersFrame(), newPersFrame()
		if i < len(a.Frames) {
			fa = a.Frames[i]
		}
		if i < len(b.Frames) {
			fb = b.Frames[i]
		}
		frames[i] = joinPersFrame(fa, fb)
	}
	return PersState{Frames: frames}
}

func (d *PersistenceDomain) Equal(a, b PersState) bool {
	if len(a.Frames) != len(b.Frames) {
		return false
	}
	for i := range a.Frames {
		if !a.Frames[i].equal(b.Frames[i]) {
			return false
		}
	}
	return true
}

func (d *PersistenceDomain) Transfer(node int, in PersState) PersState {
	n := len(in.Frames)
	frames := append([]PersFrame(nil), in.Frames...)
	top := frames[n-1]
	for _, tag := range d.Accesses[node] {
		top = persAccess(top, tag, d.Ways)
	}
	frames[n-1] = top
	return PersState{Frames: frames}
}

// EnterContext pushes a fresh empty frame for the loop headed by
// header (spec.md §4.8 "enter_context(h): push a fresh empty frame").
func (d *PersistenceDomain) EnterContext(header int, v PersState) PersState {
	return PersState{Frames: append(append([]PersFrame(nil), v.Frames...), newPersFrame())}
}

// LeaveContext merges the frame for the loop just exited into its
// parent by union-with-displacement (spec.md §4.8). The base frame is
// never popped.
func (d *PersistenceDomain) LeaveContext(header int, v PersState) PersState {
	n := len(v.Frames)
	if n < 2 {
		return v
	}
	merged := unionWithDisplacement(v.Frames[n-2], v.Frames[n-1], d.Ways)
	frames := append(append([]PersFrame(nil), v.Frames[:n-2]...), merged)
	return PersState{Frames: frames}
}

// Top is the frame for the innermost loop context live at this state,
// the one categorize.Classify reads to test persistence w.r.t. the
// innermost enclosing loop.
func (v PersState) Top() PersFrame { return v.Frames[len(v.Frames)-1] }

// accessesForSet collects, per block.Index, the ordered tags blk
// accesses on cache set, the BlockAccesses a domain needs.
func accessesForSet(blocks []*cfg.Block, lb *lblock.Graph, set int) BlockAccesses {
	out := make(BlockAccesses, len(blocks))
	for _, blk := range blocks {
		var tags []uint64
		for _, l := range lb.InBlock(blk) {
			if l.ID.Set == set {
				tags = append(tags, l.ID.Tag)
			}
		}
		if len(tags) > 0 {
			out[blk.Index] = tags
		}
	}
	return out
}
