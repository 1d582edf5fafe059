package program

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/stretchr/testify/assert"
)

func TestSegmentInstAt(t *testing.T) {
	insns := []*Instruction{
		{Address: 0x1000, Size: 4},
		{Address: 0x1004, Size: 4},
	}
	seg := NewCodeSegment("code", address.NewArea(0x1000, 8), insns)

	assert.Same(t, insns[0], seg.InstAt(0x1000))
	assert.Same(t, insns[1], seg.InstAt(0x1004))
	assert.Nil(t, seg.InstAt(0x1002))
}

func TestFileInstAtScansSegments(t *testing.T) {
	insns := []*Instruction{{Address: 0x2000, Size: 4}}
	seg := NewCodeSegment("code", address.NewArea(0x2000, 4), insns)
	f := &File{Segments: []*Segment{seg}}

	assert.Same(t, insns[0], f.InstAt(0x2000))
	assert.Nil(t, f.InstAt(0x3000))
}

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	st.Add(&Symbol{Name: "main", Address: 0x400, Function: true})

	s, ok := st.ByName("main")
	assert.True(t, ok)
	assert.Equal(t, address.Address(0x400), s.Address)

	s2, ok := st.ByAddress(0x400)
	assert.True(t, ok)
	assert.Equal(t, "main", s2.Name)
}

func TestKindBitset(t *testing.T) {
	k := Branch | Conditional
	assert.True(t, k.Has(Branch))
	assert.True(t, k.Has(Conditional))
	assert.False(t, k.Has(Call))
}
