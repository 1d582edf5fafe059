package cfg_test

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/cfg"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/program/testprogram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDiamond builds four distinct blocks p0->p1->p2->p3->ret, each
// its own leader via an explicit unconditional branch to the next
// (plain fallthrough instructions never split a block on their own),
// so a sub-CFG can be cut out of the middle of the chain by address.
func buildDiamond(t *testing.T) (*cfg.CFG, []address.Address) {
	t.Helper()
	const base = address.Address(0x9000)
	addrs := []address.Address{base, base.Add(4), base.Add(8), base.Add(12)}
	b := testprogram.NewBuilder().Func("straight", base)
	for i, a := range addrs {
		if i == len(addrs)-1 {
			b.Inst(testprogram.InstSpec{Addr: a, Size: 4, Kind: program.Return, Mnemonic: "ret"})
			continue
		}
		b.Inst(testprogram.InstSpec{Addr: a, Size: 4, Kind: program.Branch, Target: addrs[i+1], Mnemonic: "jmp"})
	}
	col, _, err := cfg.NewBuilder(b.Build()).Build(base)
	require.NoError(t, err)
	return col.CFGs[0], addrs
}

func TestExtractSubCFGKeepsOnlyPathBlocks(t *testing.T) {
	c, addrs := buildDiamond(t)

	sub := cfg.ExtractSubCFG(c, addrs[1], []address.Address{addrs[2]})
	require.NotNil(t, sub)
	require.NoError(t, sub.Validate())

	var basics int
	for _, b := range sub.Blocks {
		if b.Tag == cfg.TagBasic {
			basics++
			assert.Contains(t, []address.Address{addrs[1], addrs[2]}, b.Address())
		}
	}
	assert.Equal(t, 2, basics, "only the start and stop block should survive extraction")
	assert.True(t, reaches(sub.Entry, sub.Exit))
}

func TestExtractSubCFGUnknownStartReturnsNil(t *testing.T) {
	c, _ := buildDiamond(t)
	sub := cfg.ExtractSubCFG(c, 0xdead, nil)
	assert.Nil(t, sub)
}
