package branchbound

import (
	"context"
	"testing"
	"time"

	"github.com/statinf-otawa/otawa-core/internal/errcode"
	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shaped after the simplest non-trivial IPET system: a single loop
// header executed once more than its body, body bounded by a flow
// fact, objective maximizing total cycles.
func loopSystem() *ilp.System {
	sys := ilp.NewSystem()
	header := sys.NewVar("header")
	body := sys.NewVar("body")

	// Structural: header count = body count + 1 (entered once more
	// than the loop body executes).
	sys.AddConstraint("structural", []ilp.Term{{Coeff: 1, Var: header}, {Coeff: -1, Var: body}}, ilp.EQ, 1)
	// Flow fact: body executes at most 10 times.
	sys.AddConstraint("bound-body", []ilp.Term{{Coeff: 1, Var: body}}, ilp.LE, 10)

	sys.SetObjective([]ilp.Term{{Coeff: 2, Var: header}, {Coeff: 5, Var: body}}, true)
	return sys
}

func TestSolveLoopSystemFindsOptimum(t *testing.T) {
	sys := loopSystem()
	s := New()

	sol, err := s.Solve(context.Background(), sys)
	require.NoError(t, err)

	header, _ := sys.Var("header")
	body, _ := sys.Var("body")
	assert.Equal(t, 10.0, sol.Values[body])
	assert.Equal(t, 11.0, sol.Values[header])
	assert.Equal(t, 2*11.0+5*10.0, sol.Objective)
}

func TestSolveInfeasibleSystemReportsInfeasible(t *testing.T) {
	sys := ilp.NewSystem()
	x := sys.NewVar("x")
	sys.AddConstraint("c1", []ilp.Term{{Coeff: 1, Var: x}}, ilp.GE, 5)
	sys.AddConstraint("c2", []ilp.Term{{Coeff: 1, Var: x}}, ilp.LE, 2)
	sys.SetObjective([]ilp.Term{{Coeff: 1, Var: x}}, true)

	_, err := New().Solve(context.Background(), sys)
	require.Error(t, err)
	kind, ok := errcode.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errcode.Infeasible, kind)
}

func TestSolveRespectsContextCancellation(t *testing.T) {
	sys := loopSystem()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := New().Solve(ctx, sys)
	require.Error(t, err)
	kind, ok := errcode.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errcode.Cancelled, kind)
}

func TestSolveOnlySupportsMaximize(t *testing.T) {
	sys := ilp.NewSystem()
	x := sys.NewVar("x")
	sys.AddConstraint("c", []ilp.Term{{Coeff: 1, Var: x}}, ilp.LE, 3)
	sys.SetObjective([]ilp.Term{{Coeff: 1, Var: x}}, false)

	_, err := New().Solve(context.Background(), sys)
	require.Error(t, err)
	kind, ok := errcode.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errcode.SolverError, kind)
}
