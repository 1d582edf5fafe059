package program

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/statinf-otawa/otawa-core/internal/address"
)

// This file stands in for the external disassembler/loader (spec.md
// §1 Non-goals): since no example in the pack decodes real object
// code, a program.File is instead read back from a JSON program-model
// fixture, the <executable-stub> of the CLI surface (spec.md §6 /
// §8.4), mirroring the attribute-driven decoding hardware/xml.go does
// for the cache-config XML document but for encoding/json.

type fileJSON struct {
	Path     string       `json:"path"`
	Symbols  []symbolJSON `json:"symbols"`
	Segments []segmentJSON `json:"segments"`
}

type symbolJSON struct {
	Name     string `json:"name"`
	Addr     string `json:"addr"`
	Function bool   `json:"function"`
}

type segmentJSON struct {
	Name         string            `json:"name"`
	Kind         string            `json:"kind"` // "code" or "data"
	Base         string            `json:"base"` // data segments only
	Size         uint64            `json:"size"` // data segments only
	Writable     bool              `json:"writable"`
	Instructions []instructionJSON `json:"instructions"` // code segments only
}

type instructionJSON struct {
	Addr     string   `json:"addr"`
	Size     uint64   `json:"size"`
	Kind     []string `json:"kind"`
	Target   string   `json:"target"`
	Mnemonic string   `json:"mnemonic"`
	Reads    []string `json:"reads"`
	Writes   []string `json:"writes"`
	Cycles   int      `json:"cycles"` // timing hint; 0 means "unspecified", not "free"
}

var kindNames = map[string]Kind{
	"branch":       Branch,
	"conditional":  Conditional,
	"call":         Call,
	"return":       Return,
	"indirect":     Indirect,
	"load":         Load,
	"store":        Store,
	"float":        Float,
	"multi-memory": MultiMemory,
	"intern":       Intern,
}

func parseAddr(s string) (address.Address, error) {
	if s == "" {
		return address.Null, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("program: malformed address %q: %w", s, err)
	}
	return address.Address(v), nil
}

func parseKind(flags []string) (Kind, error) {
	var k Kind
	for _, f := range flags {
		bit, ok := kindNames[f]
		if !ok {
			return 0, fmt.Errorf("program: unknown instruction kind %q", f)
		}
		k |= bit
	}
	return k, nil
}

// ParseJSON decodes a program-model fixture (spec.md §8.4's
// <executable-stub>) into a File. Instructions within a code segment
// need not be pre-sorted; ParseJSON orders them by address. The
// returned cycles map holds every instruction's "cycles" hint keyed by
// address, for a caller (e.g. the CLI driver) to fold into per-block
// ipet.TimeKey properties; an instruction with no hint is absent from
// the map rather than defaulting to zero cost.
func ParseJSON(data []byte) (*File, map[address.Address]int, error) {
	var doc fileJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("program: malformed program model: %w", err)
	}

	symbols := NewSymbolTable()
	for _, s := range doc.Symbols {
		addr, err := parseAddr(s.Addr)
		if err != nil {
			return nil, nil, err
		}
		symbols.Add(&Symbol{Name: s.Name, Address: addr, Function: s.Function})
	}

	file := &File{Path: doc.Path, Symbols: symbols}
	cycles := map[address.Address]int{}

	for _, seg := range doc.Segments {
		switch seg.Kind {
		case "code", "":
			insns := make([]*Instruction, 0, len(seg.Instructions))
			for _, is := range seg.Instructions {
				addr, err := parseAddr(is.Addr)
				if err != nil {
					return nil, nil, err
				}
				target, err := parseAddr(is.Target)
				if err != nil {
					return nil, nil, err
				}
				kind, err := parseKind(is.Kind)
				if err != nil {
					return nil, nil, err
				}
				insns = append(insns, &Instruction{
					Address:  addr,
					Size:     is.Size,
					Kind:     kind,
					Target:   target,
					Reads:    is.Reads,
					Writes:   is.Writes,
					Mnemonic: is.Mnemonic,
				})
				if is.Cycles != 0 {
					cycles[addr] = is.Cycles
				}
			}
			sortInstructions(insns)
			name := seg.Name
			if name == "" {
				name = "code"
			}
			var lo address.Address
			var hi uint64
			if len(insns) > 0 {
				lo = insns[0].Address
				hi = uint64(insns[len(insns)-1].End())
			}
			file.Segments = append(file.Segments, NewCodeSegment(name, address.NewArea(lo, hi-uint64(lo)), insns))
		case "data":
			base, err := parseAddr(seg.Base)
			if err != nil {
				return nil, nil, err
			}
			name := seg.Name
			if name == "" {
				name = "data"
			}
			file.Segments = append(file.Segments, &Segment{
				Name:     name,
				Area:     address.NewArea(base, seg.Size),
				Kind:     Data,
				Writable: seg.Writable,
			})
		default:
			return nil, nil, fmt.Errorf("program: unknown segment kind %q", seg.Kind)
		}
	}

	return file, cycles, nil
}

func sortInstructions(insns []*Instruction) {
	sort.Slice(insns, func(i, j int) bool { return insns[i].Address < insns[j].Address })
}
