package external

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/ilp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSystem() *ilp.System {
	sys := ilp.NewSystem()
	header := sys.NewVar("header")
	body := sys.NewVar("body")
	sys.AddConstraint("structural", []ilp.Term{{Coeff: 1, Var: header}, {Coeff: -1, Var: body}}, ilp.EQ, 1)
	sys.AddConstraint("bound-body", []ilp.Term{{Coeff: 1, Var: body}}, ilp.LE, 10)
	sys.SetObjective([]ilp.Term{{Coeff: 2, Var: header}, {Coeff: 5, Var: body}}, true)
	return sys
}

func TestWriteLPRendersMaximizeAndConstraints(t *testing.T) {
	lp := WriteLP(sampleSystem())
	assert.Contains(t, lp, "max: 2 header + 5 body;")
	assert.Contains(t, lp, "structural: 1 header + -1 body = 1;")
	assert.Contains(t, lp, "bound_body: 1 body <= 10;")
	assert.Contains(t, lp, "int header,body;")
}

func TestSanitizeNameReplacesReservedCharacters(t *testing.T) {
	assert.Equal(t, "entry_0x1000", sanitizeName("entry@0x1000"))
}

func TestParseSolutionReadsObjectiveAndValues(t *testing.T) {
	sys := sampleSystem()
	output := "\nValue of objective function: 72.00000000\n\n" +
		"Actual values of the variables:\n" +
		"header                           11\n" +
		"body                             10\n"

	sol, err := parseSolution(sys, output)
	require.NoError(t, err)
	assert.Equal(t, 72.0, sol.Objective)

	header, _ := sys.Var("header")
	body, _ := sys.Var("body")
	assert.Equal(t, 11.0, sol.Values[header])
	assert.Equal(t, 10.0, sol.Values[body])
}

func TestParseSolutionReturnsErrorWhenObjectiveMissing(t *testing.T) {
	_, err := parseSolution(sampleSystem(), "garbage output\n")
	require.Error(t, err)
}

// TestSolveInvokesConfiguredBinary exercises the full Solve path
// against a fake "lp_solve" script so the test suite does not depend
// on the real tool being installed.
func TestSolveInvokesConfiguredBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake solver script is a POSIX shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-lp-solve.sh")
	body := "#!/bin/sh\ncat <<'EOF'\nValue of objective function: 72.00000000\n\nActual values of the variables:\nheader                           11\nbody                             10\nEOF\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	s := New(script)
	sol, err := s.Solve(context.Background(), sampleSystem())
	require.NoError(t, err)
	assert.Equal(t, 72.0, sol.Objective)
}
