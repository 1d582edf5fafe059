// Package testprogram builds program.File fixtures directly from Go
// data, standing in for the external disassembler/loader (explicitly
// out of scope per spec.md §1) so the CFG builder and every downstream
// analysis have a concrete, testable input. Grounded in the teacher's
// ir.Builder, which similarly constructs its IR from a Go-side AST
// rather than parsing bytes off disk.
package testprogram

import (
	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/program"
)

// InstSpec describes one instruction to synthesize.
type InstSpec struct {
	Addr     address.Address
	Size     uint64
	Kind     program.Kind
	Target   address.Address
	Mnemonic string
}

// Builder assembles a single-file, single-code-segment program from a
// flat instruction list, the shape every end-to-end scenario in
// spec.md §8 needs.
type Builder struct {
	insns   []*program.Instruction
	symbols *program.SymbolTable
}

func NewBuilder() *Builder {
	return &Builder{symbols: program.NewSymbolTable()}
}

// Inst appends one instruction, synthesized from spec, in address order.
func (b *Builder) Inst(spec InstSpec) *Builder {
	b.insns = append(b.insns, &program.Instruction{
		Address:  spec.Addr,
		Size:     spec.Size,
		Kind:     spec.Kind,
		Target:   spec.Target,
		Mnemonic: spec.Mnemonic,
	})
	return b
}

// Func registers a function entry symbol at addr.
func (b *Builder) Func(name string, addr address.Address) *Builder {
	b.symbols.Add(&program.Symbol{Name: name, Address: addr, Function: true})
	return b
}

// Build materializes the accumulated instructions into a program.File
// with one code segment spanning them.
func (b *Builder) Build() *program.File {
	var lo, hi address.Address
	if len(b.insns) > 0 {
		lo = b.insns[0].Address
		last := b.insns[len(b.insns)-1]
		hi = last.End()
	}
	seg := program.NewCodeSegment("code", address.NewArea(lo, uint64(hi)-uint64(lo)), b.insns)
	return &program.File{
		Path:     "<testprogram>",
		Segments: []*program.Segment{seg},
		Symbols:  b.symbols,
	}
}

// StraightLine builds n sequentially-executed instructions of size
// insnSize bytes starting at base, each falling through to the next
// and the last one returning. Used to ground spec.md §8 scenario E1.
func StraightLine(base address.Address, n int, insnSize uint64) *program.File {
	b := NewBuilder().Func("entry", base)
	addr := base
	for i := 0; i < n; i++ {
		kind := program.Kind(0)
		if i == n-1 {
			kind = program.Return
		}
		b.Inst(InstSpec{Addr: addr, Size: insnSize, Kind: kind, Mnemonic: "nop"})
		addr = addr.Add(insnSize)
	}
	return b.Build()
}
