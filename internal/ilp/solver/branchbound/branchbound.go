// Package branchbound is the default, in-process Solver: an exact
// branch-and-bound integer search requiring no external tooling, used
// by the CLI driver when no external solver is configured and by this
// repository's own tests. Grounded in the IPET-specific shape of the
// problem (spec.md §4.11): every variable is a non-negative execution
// count, so a simple DFS that checks each constraint once all its
// variables are assigned, and prunes with an optimistic bound (every
// unassigned variable with a positive objective coefficient at its
// upper bound), is sufficient without a general
// simplex implementation, unlike the external/lp_solve-backed plugin
// path production-scale problems need (internal/ilp/solver/external).
package branchbound

import (
	"context"
	"math"
	"sort"

	"github.com/statinf-otawa/otawa-core/internal/errcode"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
)

// Solver is an exact branch-and-bound search over integer variable
// assignments. DefaultUpperBound caps any variable whose upper bound
// cannot be inferred from a single-variable constraint in the system;
// it must be large enough to admit the true optimum or the search
// reports Infeasible in error.
type Solver struct {
	DefaultUpperBound int
}

// New creates a Solver with a conservative default bound.
func New() *Solver { return &Solver{DefaultUpperBound: 1024} }

func (s *Solver) Solve(ctx context.Context, sys *ilp.System) (*ilp.Solution, error) {
	if !sys.Objective.Maximize {
		return nil, errcode.New(errcode.SolverError, "branchbound only supports maximization systems")
	}
	ub := s.defaultUpperBound()
	bounds := inferUpperBounds(sys, ub)

	order := make([]*ilp.Var, len(sys.Vars))
	copy(order, sys.Vars)
	sort.Slice(order, func(i, j int) bool { return order[i].Name < order[j].Name })

	search := &search{
		ctx:    ctx,
		sys:    sys,
		bounds: bounds,
		order:  order,
		best:   math.Inf(-1),
	}
	values := make(map[*ilp.Var]float64, len(order))
	if err := search.branch(values, 0); err != nil {
		return nil, err
	}
	if search.bestValues == nil {
		return nil, errcode.New(errcode.Infeasible, "no feasible integer assignment found within bound %d", ub)
	}
	return &ilp.Solution{Values: search.bestValues, Objective: search.best}, nil
}

func (s *Solver) defaultUpperBound() int {
	if s.DefaultUpperBound > 0 {
		return s.DefaultUpperBound
	}
	return 1024
}

type search struct {
	ctx        context.Context
	sys        *ilp.System
	bounds     map[*ilp.Var]int
	order      []*ilp.Var
	best       float64
	bestValues map[*ilp.Var]float64
}

func (b *search) branch(values map[*ilp.Var]float64, i int) error {
	select {
	case <-b.ctx.Done():
		return errcode.New(errcode.Cancelled, "ilp search cancelled: %v", b.ctx.Err())
	default:
	}

	if i == len(b.order) {
		if !b.feasible(values) {
			return nil
		}
		obj := ilp.Eval(b.sys.Objective.Terms, values)
		if obj > b.best {
			b.best = obj
			b.bestValues = cloneValues(values)
		}
		return nil
	}

	// Prune: even granting every remaining variable its upper bound
	// (or 0, whichever helps the objective more), this branch cannot
	// beat the best integer solution found so far.
	if b.best > math.Inf(-1) && b.optimisticBound(values, i) <= b.best {
		return nil
	}

	v := b.order[i]
	for x := 0; x <= b.bounds[v]; x++ {
		values[v] = float64(x)
		if b.violatesBoundConstraint(values, i) {
			continue
		}
		if err := b.branch(values, i+1); err != nil {
			return err
		}
	}
	delete(values, v)
	return nil
}

// violatesBoundConstraint checks every constraint whose variables are
// all assigned among values[0:i+1], pruning infeasible partial
// assignments before recursing deeper.
func (b *search) violatesBoundConstraint(values map[*ilp.Var]float64, i int) bool {
	assigned := make(map[*ilp.Var]bool, i+1)
	for j := 0; j <= i; j++ {
		assigned[b.order[j]] = true
	}
	for _, c := range b.sys.Constraints {
		complete := true
		for _, t := range c.Terms {
			if !assigned[t.Var] {
				complete = false
				break
			}
		}
		if complete && !c.Satisfied(values) {
			return true
		}
	}
	return false
}

func (b *search) feasible(values map[*ilp.Var]float64) bool {
	for _, c := range b.sys.Constraints {
		if !c.Satisfied(values) {
			return false
		}
	}
	return true
}

func (b *search) optimisticBound(values map[*ilp.Var]float64, i int) float64 {
	total := 0.0
	assigned := make(map[*ilp.Var]bool, i)
	for j := 0; j < i; j++ {
		assigned[b.order[j]] = true
	}
	for _, t := range b.sys.Objective.Terms {
		if assigned[t.Var] {
			total += t.Coeff * values[t.Var]
			continue
		}
		if t.Coeff >= 0 {
			total += t.Coeff * float64(b.bounds[t.Var])
		}
	}
	return total
}

func cloneValues(values map[*ilp.Var]float64) map[*ilp.Var]float64 {
	out := make(map[*ilp.Var]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// inferUpperBounds scans for single-variable constraints (coeff*v <=
// rhs with coeff>0, coeff*v >= rhs with coeff<0, or coeff*v = rhs) and
// uses the tightest
// one found as that variable's search bound, falling back to def.
func inferUpperBounds(sys *ilp.System, def int) map[*ilp.Var]int {
	bounds := make(map[*ilp.Var]int, len(sys.Vars))
	for _, v := range sys.Vars {
		bounds[v] = def
	}
	for _, c := range sys.Constraints {
		if len(c.Terms) != 1 {
			continue
		}
		t := c.Terms[0]
		var bound float64
		switch {
		case c.Op == ilp.LE && t.Coeff > 0:
			bound = c.RHS / t.Coeff
		case c.Op == ilp.GE && t.Coeff < 0:
			bound = c.RHS / t.Coeff
		case c.Op == ilp.EQ:
			bound = c.RHS / t.Coeff
		default:
			continue
		}
		if b := int(math.Floor(bound + 1e-6)); b >= 0 && b < bounds[t.Var] {
			bounds[t.Var] = b
		}
	}
	return bounds
}
