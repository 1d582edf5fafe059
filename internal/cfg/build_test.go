package cfg

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/program"
	"github.com/statinf-otawa/otawa-core/internal/program/testprogram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStraightLine(t *testing.T) {
	file := testprogram.StraightLine(0x1000, 4, 4)
	col, warnings, err := NewBuilder(file).Build(0x1000)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, col.CFGs, 1)

	c := col.CFGs[0]
	require.NoError(t, c.Validate())
	require.Len(t, c.Blocks, 3) // entry, one basic block, exit
	assert.Equal(t, TagEntry, c.Entry.Tag)
	assert.Equal(t, TagExit, c.Exit.Tag)

	// Every instruction is reachable from entry and appears in exactly
	// one basic block (spec.md §8 property 1).
	total := 0
	for _, b := range c.Blocks {
		if b.Tag == TagBasic {
			total += len(b.Instructions)
		}
	}
	assert.Equal(t, 4, total)

	// The sole basic block closes to Exit via a ReturnEdge.
	require.Len(t, c.Exit.In(), 1)
	assert.Equal(t, ReturnEdge, c.Exit.In()[0].Kind)
}

func TestBuildConditionalBranchSplitsBlocks(t *testing.T) {
	// 0x1000: cmp-and-branch (conditional, direct) to 0x1010
	// 0x1004: nop (fallthrough leader)
	// 0x1008: return
	// 0x1010: return (taken target)
	b := testprogram.NewBuilder().Func("entry", 0x1000)
	b.Inst(testprogram.InstSpec{Addr: 0x1000, Size: 4, Kind: program.Branch | program.Conditional, Target: 0x1010, Mnemonic: "bcc"})
	b.Inst(testprogram.InstSpec{Addr: 0x1004, Size: 4, Mnemonic: "nop"})
	b.Inst(testprogram.InstSpec{Addr: 0x1008, Size: 4, Kind: program.Return, Mnemonic: "ret"})
	b.Inst(testprogram.InstSpec{Addr: 0x1010, Size: 4, Kind: program.Return, Mnemonic: "ret"})
	file := b.Build()

	col, _, err := NewBuilder(file).Build(0x1000)
	require.NoError(t, err)
	require.Len(t, col.CFGs, 1)
	c := col.CFGs[0]
	require.NoError(t, c.Validate())

	basics := 0
	for _, blk := range c.Blocks {
		if blk.Tag == TagBasic {
			basics++
		}
	}
	assert.Equal(t, 3, basics, "leaders at 0x1000, 0x1004, 0x1010")

	head := blockAt(t, c, 0x1000)
	require.Len(t, head.Out(), 2)
	kinds := map[EdgeKind]bool{head.Out()[0].Kind: true, head.Out()[1].Kind: true}
	assert.True(t, kinds[Taken])
	assert.True(t, kinds[NotTaken])
}

func TestBuildDirectCallProducesTwoCFGsAndSyntheticBlock(t *testing.T) {
	// entry at 0x1000 calls 0x2000, falls through to a return.
	b := testprogram.NewBuilder().Func("entry", 0x1000).Func("callee", 0x2000)
	b.Inst(testprogram.InstSpec{Addr: 0x1000, Size: 4, Kind: program.Branch | program.Call, Target: 0x2000, Mnemonic: "call"})
	b.Inst(testprogram.InstSpec{Addr: 0x1004, Size: 4, Kind: program.Return, Mnemonic: "ret"})
	b.Inst(testprogram.InstSpec{Addr: 0x2000, Size: 4, Kind: program.Return, Mnemonic: "ret"})
	file := b.Build()

	col, warnings, err := NewBuilder(file).Build(0x1000)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, col.CFGs, 2)

	// taskEntry is always index 0 (spec.md §3 Collection ordering).
	assert.Equal(t, "entry", col.CFGs[0].Label)

	entryCFG := col.CFGs[0]
	require.NoError(t, entryCFG.Validate())

	var callBlk *Block
	for _, blk := range entryCFG.Blocks {
		if blk.Tag == TagSyntheticCall {
			callBlk = blk
		}
	}
	require.NotNil(t, callBlk, "expected a synthetic call block")
	require.NotNil(t, callBlk.Callee, "call block's callee must resolve")
	assert.Equal(t, "callee", callBlk.Callee.Label)
	assert.Contains(t, callBlk.Callee.Callers, callBlk)
}

func TestBuildIndirectBranchRoutesToUnknownSinkWithWarning(t *testing.T) {
	b := testprogram.NewBuilder().Func("entry", 0x1000)
	b.Inst(testprogram.InstSpec{Addr: 0x1000, Size: 4, Kind: program.Branch | program.Indirect, Mnemonic: "jmp *r0"})
	file := b.Build()

	col, warnings, err := NewBuilder(file).Build(0x1000)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	kind, ok := warningKind(warnings[0])
	require.True(t, ok)
	assert.Equal(t, "UnresolvedBranch", kind)

	c := col.CFGs[0]
	require.NoError(t, c.Validate())
	require.NotNil(t, c.Unknown)
}

func blockAt(t *testing.T, c *CFG, addr address.Address) *Block {
	t.Helper()
	for _, b := range c.Blocks {
		if b.Tag == TagBasic && b.Address() == addr {
			return b
		}
	}
	t.Fatalf("no basic block at %s", addr)
	return nil
}

func warningKind(w Warning) (string, bool) {
	if w.Err == nil {
		return "", false
	}
	return w.Err.Kind().String(), true
}
