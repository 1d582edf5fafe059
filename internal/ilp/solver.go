package ilp

import "context"

// Solution is a feasible (and, for an exact Solver, optimal)
// assignment plus the resulting objective value.
type Solution struct {
	Values    map[*Var]float64
	Objective float64
}

// Solver is the pluggable back end IPET hands its System to (spec.md
// §4.11 "the ILP solver is an external plugin"). Implementations
// report errcode.Infeasible, errcode.Unbounded, errcode.Timeout or
// errcode.SolverError on failure, and honor ctx cancellation.
type Solver interface {
	Solve(ctx context.Context, sys *System) (*Solution, error)
}
