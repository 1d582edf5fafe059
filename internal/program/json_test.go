package program

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONBuildsFile(t *testing.T) {
	doc := `{
		"path": "fixture.bin",
		"symbols": [{"name": "main", "addr": "0x1000", "function": true}],
		"segments": [
			{
				"name": "code",
				"kind": "code",
				"instructions": [
					{"addr": "0x1004", "size": 4, "kind": ["return"], "mnemonic": "ret", "cycles": 3},
					{"addr": "0x1000", "size": 4, "kind": ["branch", "conditional"], "target": "0x1000", "mnemonic": "bnz", "cycles": 2}
				]
			},
			{"name": "bss", "kind": "data", "base": "0x8000", "size": 64, "writable": true}
		]
	}`

	f, cycles, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "fixture.bin", f.Path)
	assert.Equal(t, 2, cycles[address.Address(0x1000)])
	assert.Equal(t, 3, cycles[address.Address(0x1004)])

	sym, ok := f.Symbols.ByName("main")
	require.True(t, ok)
	assert.Equal(t, address.Address(0x1000), sym.Address)

	require.Len(t, f.Segments, 2)
	code := f.Segments[0]
	require.Len(t, code.Instructions(), 2)
	// instructions must come back in address order regardless of input order.
	assert.Equal(t, address.Address(0x1000), code.Instructions()[0].Address)
	assert.Equal(t, address.Address(0x1004), code.Instructions()[1].Address)

	first := code.InstAt(0x1000)
	require.NotNil(t, first)
	assert.True(t, first.Kind.Has(Branch))
	assert.True(t, first.Kind.Has(Conditional))
	assert.Equal(t, address.Address(0x1000), first.Target)

	data := f.Segments[1]
	assert.Equal(t, Data, data.Kind)
	assert.True(t, data.Writable)
	assert.Equal(t, address.Address(0x8000), data.Area.Base)
}

func TestParseJSONRejectsUnknownKind(t *testing.T) {
	doc := `{"segments":[{"kind":"code","instructions":[{"addr":"0x1000","size":2,"kind":["frobnicate"]}]}]}`
	_, _, err := ParseJSON([]byte(doc))
	assert.Error(t, err)
}

func TestParseJSONRejectsMalformedAddress(t *testing.T) {
	doc := `{"symbols":[{"name":"main","addr":"not-hex"}]}`
	_, _, err := ParseJSON([]byte(doc))
	assert.Error(t, err)
}
