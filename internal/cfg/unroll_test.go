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

func buildSelfLoop(t *testing.T) *cfg.CFG {
	t.Helper()
	const body = address.Address(0x8000)
	file := testprogram.NewBuilder().
		Func("loop", body).
		Inst(testprogram.InstSpec{Addr: body, Size: 4, Kind: program.Branch | program.Conditional, Target: body, Mnemonic: "bnz"}).
		Inst(testprogram.InstSpec{Addr: body.Add(4), Size: 4, Kind: program.Return, Mnemonic: "ret"}).
		Build()
	col, _, err := cfg.NewBuilder(file).Build(body)
	require.NoError(t, err)
	return col.CFGs[0]
}

func TestUnrollIdentityAtKOne(t *testing.T) {
	c := buildSelfLoop(t)
	tree := domtree.Build(c)
	forest := domtree.FindLoops(c, tree)

	u := cfg.Unroll(c, forest, 1)
	assert.Equal(t, len(c.Blocks), len(u.Blocks))
	require.NoError(t, u.Validate())
}

func TestUnrollChainsCopies(t *testing.T) {
	c := buildSelfLoop(t)
	tree := domtree.Build(c)
	forest := domtree.FindLoops(c, tree)

	const k = 3
	u := cfg.Unroll(c, forest, k)
	require.NoError(t, u.Validate())

	// original had entry, exit, one header body block, and one ret
	// block; unrolling the single-block loop k times should add k-1
	// extra copies of just the header.
	assert.Equal(t, len(c.Blocks)+(k-1), len(u.Blocks))

	var basics []*cfg.Block
	for _, b := range u.Blocks {
		if b.Tag == cfg.TagBasic {
			basics = append(basics, b)
		}
	}
	// k header copies plus the single ret block.
	assert.Len(t, basics, k+1)

	// every basic block must still reach exit.
	for _, b := range basics {
		assert.True(t, reaches(b, u.Exit), "block should still reach exit after unrolling")
	}
}
