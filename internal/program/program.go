// Package program models the read-only program under analysis
// (spec.md §3, §4.3): files, segments, instructions, and the symbol
// table. It is populated exclusively by the external loader; the core
// never mutates it, only attaches properties keyed by instruction or
// symbol identity.
package program

import (
	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/statinf-otawa/otawa-core/internal/program/semantics"
)

// Kind is the instruction kind bitset of spec.md §3. Calls and all
// jumps (conditional or not, direct or indirect) carry Branch
// alongside their more specific bit; Target is valid only for the
// direct ones (see Instruction.Target). Return does not carry Branch.
type Kind uint16

const (
	Branch Kind = 1 << iota
	Conditional
	Call
	Return
	Indirect
	Load
	Store
	Float
	MultiMemory
	Intern
)

func (k Kind) Has(flag Kind) bool { return k&flag != 0 }

// Instruction is a read-only leaf of the program model.
type Instruction struct {
	Address  address.Address
	Size     uint64
	Kind     Kind
	Target   address.Address // valid iff Kind.Has(Branch) && !Indirect
	Reads    []string        // register names read
	Writes   []string        // register names written
	Ops      []semantics.Op
	Mnemonic string
}

// End returns the address one past the instruction's last byte.
func (i *Instruction) End() address.Address { return i.Address.Add(i.Size) }

// SegmentKind distinguishes code from data segments.
type SegmentKind int

const (
	Code SegmentKind = iota
	Data
)

// Segment is a contiguous, homogeneous region of a File.
type Segment struct {
	Name       string
	Area       address.Area
	Kind       SegmentKind
	Writable   bool
	insByAddr  map[address.Address]*Instruction
	ordered    []*Instruction
}

// NewCodeSegment builds a code segment from a decoded instruction list,
// which must already be ordered by address and non-overlapping.
func NewCodeSegment(name string, area address.Area, instructions []*Instruction) *Segment {
	s := &Segment{Name: name, Area: area, Kind: Code, insByAddr: make(map[address.Address]*Instruction, len(instructions)), ordered: instructions}
	for _, ins := range instructions {
		s.insByAddr[ins.Address] = ins
	}
	return s
}

// InstAt returns the decoded instruction at a, or nil if a does not
// start an instruction in this segment.
func (s *Segment) InstAt(a address.Address) *Instruction {
	if s.Kind != Code {
		return nil
	}
	return s.insByAddr[a]
}

// Instructions returns the segment's instructions in address order.
func (s *Segment) Instructions() []*Instruction { return s.ordered }

// Symbol names an address: a function entry or a data label.
type Symbol struct {
	Name     string
	Address  address.Address
	Function bool
}

// SymbolTable maps labels and functions to addresses.
type SymbolTable struct {
	byName map[string]*Symbol
	byAddr map[address.Address]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol), byAddr: make(map[address.Address]*Symbol)}
}

func (t *SymbolTable) Add(s *Symbol) {
	t.byName[s.Name] = s
	t.byAddr[s.Address] = s
}

func (t *SymbolTable) ByName(name string) (*Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

func (t *SymbolTable) ByAddress(a address.Address) (*Symbol, bool) {
	s, ok := t.byAddr[a]
	return s, ok
}

// File is one loaded executable: a sequence of segments plus a symbol
// table shared across them.
type File struct {
	Path     string
	Segments []*Segment
	Symbols  *SymbolTable
}

// InstAt scans every code segment for the instruction starting at a.
func (f *File) InstAt(a address.Address) *Instruction {
	for _, seg := range f.Segments {
		if seg.Kind == Code && seg.Area.Contains(a) {
			if ins := seg.InstAt(a); ins != nil {
				return ins
			}
		}
	}
	return nil
}

// SegmentAt returns the segment containing a, if any.
func (f *File) SegmentAt(a address.Address) (*Segment, bool) {
	for _, seg := range f.Segments {
		if seg.Area.Contains(a) {
			return seg, true
		}
	}
	return nil, false
}
