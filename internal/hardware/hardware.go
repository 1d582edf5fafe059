// Package hardware models the platform description (spec.md §3, §4.3):
// register banks, memory banks, and the cache hierarchy consumed from
// the loader.
package hardware

import (
	"fmt"

	"github.com/statinf-otawa/otawa-core/internal/address"
)

// RegisterKind categorizes a RegisterBank's homogeneous contents.
type RegisterKind int

const (
	IntegerRegisters RegisterKind = iota
	FloatRegisters
	AddressRegisters
	BitMaskRegisters
)

// RegisterBank is a named, homogeneous array of registers of fixed
// bit width and kind.
type RegisterBank struct {
	Name  string
	Kind  RegisterKind
	Width int // bits
	Count int
}

// Unalias maps a possibly-aliased register name to the contiguous bank
// slice it occupies. Banks is searched in order; the first bank whose
// Name matches the register's bank prefix wins.
func Unalias(banks []*RegisterBank, bankName string) (*RegisterBank, bool) {
	for _, b := range banks {
		if b.Name == bankName {
			return b, true
		}
	}
	return nil, false
}

// ReplacementPolicy is the cache's eviction policy.
type ReplacementPolicy int

const (
	LRU ReplacementPolicy = iota
	FIFO
	Random
	PseudoLRU
	NoReplacement
)

func ParseReplacementPolicy(s string) (ReplacementPolicy, error) {
	switch s {
	case "LRU":
		return LRU, nil
	case "FIFO":
		return FIFO, nil
	case "random":
		return Random, nil
	case "pseudo-LRU":
		return PseudoLRU, nil
	case "none":
		return NoReplacement, nil
	default:
		return 0, fmt.Errorf("hardware: unknown replacement policy %q", s)
	}
}

// WritePolicy is the cache's write propagation policy.
type WritePolicy int

const (
	WriteThrough WritePolicy = iota
	WriteBack
)

func ParseWritePolicy(s string) (WritePolicy, error) {
	switch s {
	case "write-through":
		return WriteThrough, nil
	case "write-back":
		return WriteBack, nil
	default:
		return 0, fmt.Errorf("hardware: unknown write policy %q", s)
	}
}

// Cache is a mapping-from-addresses abstraction: S sets, A-way
// associative, B-byte blocks (power of two), forming a list toward
// the next level (nil at the last level).
type Cache struct {
	Name        string
	Sets        int
	Ways        int
	BlockSize   int
	Replacement ReplacementPolicy
	Write       WritePolicy
	Next        *Cache
}

// Set returns the cache-set index that address a maps to.
func (c *Cache) Set(a address.Address) int {
	return int(uint64(a) / uint64(c.BlockSize) % uint64(c.Sets))
}

// Tag returns the tag bits that identify a's block within its set.
func (c *Cache) Tag(a address.Address) uint64 {
	return uint64(a) / uint64(c.BlockSize) / uint64(c.Sets)
}

// Block returns the aligned cache-block address containing a.
func (c *Cache) Block(a address.Address) address.Address {
	return address.Address(uint64(a) / uint64(c.BlockSize) * uint64(c.BlockSize))
}

// BlockID uniquely identifies a cache block within one set by
// combining tag and set; l-block construction (C8) de-duplicates on
// this pair.
type BlockID struct {
	Set int
	Tag uint64
}

func (c *Cache) BlockIDOf(a address.Address) BlockID {
	return BlockID{Set: c.Set(a), Tag: c.Tag(a)}
}

// MemoryKind categorizes a MemoryBank.
type MemoryKind int

const (
	ROM MemoryKind = iota
	Scratchpad
	DRAM
	IO
)

// MemoryBank is a named half-open address range with read/write
// latencies and whether it is behind a cache.
type MemoryBank struct {
	Name         string
	Area         address.Area
	Kind         MemoryKind
	ReadLatency  int
	WriteLatency int
	Cached       bool
}

// PipelineStage is a minimal optional pipeline descriptor, sufficient
// for timing analyses to attach per-stage latencies; the core does not
// itself compute block times (spec.md §4.9 takes t_b as a given input)
// but platforms may describe a pipeline for that external timing pass.
type PipelineStage struct {
	Name    string
	Latency int
}

// Pipeline is the optional ordered stage list of the platform.
type Pipeline struct {
	Stages []PipelineStage
}

// Platform bundles everything the CFG builder and cache/IPET analyses
// need from the loader about the target machine.
type Platform struct {
	RegisterBanks []*RegisterBank
	MemoryBanks   []*MemoryBank
	ICache        *Cache
	DCache        *Cache
	Pipeline      *Pipeline
}

// MemoryBankAt returns the bank containing a, if any.
func (p *Platform) MemoryBankAt(a address.Address) (*MemoryBank, bool) {
	for _, b := range p.MemoryBanks {
		if b.Area.Contains(a) {
			return b, true
		}
	}
	return nil, false
}
