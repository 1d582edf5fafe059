package cfg_test

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/domtree"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/program/testprogram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCrisscross constructs the textbook minimal irreducible CFG: S
// branches into A or B directly, A and B branch into each other, so
// the {A,B} region has two entries (S->A and S->B) and neither
// dominates the other.
func buildCrisscross(t *testing.T) *cfg.CFG {
	t.Helper()
	const s, b, a, r = address.Address(0x6000), address.Address(0x6004), address.Address(0x6010), address.Address(0x6014)

	file := testprogram.NewBuilder().
		Func("start", s).
		Inst(testprogram.InstSpec{Addr: s, Size: 4, Kind: program.Branch | program.Conditional, Target: a, Mnemonic: "bnz"}).
		Inst(testprogram.InstSpec{Addr: b, Size: 4, Kind: program.Branch, Target: a, Mnemonic: "jmp"}).
		Inst(testprogram.InstSpec{Addr: a, Size: 4, Kind: program.Branch | program.Conditional, Target: b, Mnemonic: "bnz"}).
		Inst(testprogram.InstSpec{Addr: r, Size: 4, Kind: program.Return, Mnemonic: "ret"}).
		Build()

	col, warnings, err := cfg.NewBuilder(file).Build(s)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return col.CFGs[0]
}

func TestReduceLoopsSplitsCrisscross(t *testing.T) {
	c := buildCrisscross(t)

	reduced := cfg.ReduceLoops(c)
	require.NoError(t, reduced.Validate())

	tree := domtree.Build(reduced)
	forest := domtree.FindLoops(reduced, tree)

	for header, loop := range forest.ByHeader {
		entries := 0
		for _, b := range reduced.Blocks {
			if !loop.Contains(b) {
				continue
			}
			for _, e := range b.In() {
				if !loop.Contains(e.Source) {
					entries++
				}
			}
		}
		assert.LessOrEqual(t, entries, 1, "loop headed by %s must end up with a single entry", header)
	}
}

func TestReduceLoopsIsNoopOnReducibleCFG(t *testing.T) {
	file := testprogram.StraightLine(0x7000, 3, 4)
	col, _, err := cfg.NewBuilder(file).Build(0x7000)
	require.NoError(t, err)
	c := col.CFGs[0]

	reduced := cfg.ReduceLoops(c)
	assert.Equal(t, len(c.Blocks), len(reduced.Blocks))
	require.NoError(t, reduced.Validate())
}
