// Package address implements Address and MemoryArea (spec.md §3): a
// 64-bit address space with a null sentinel and half-open intervals.
package address

import "fmt"

// Null is the empty address; it participates in no interval.
const Null Address = 0xffffffffffffffff

// Address is a 64-bit unsigned program address.
type Address uint64

// IsNull reports whether a is the null sentinel.
func (a Address) IsNull() bool { return a == Null }

// Add returns a+n, unchecked for overflow (addresses wrap like the
// target's own address space would).
func (a Address) Add(n uint64) Address { return a + Address(n) }

func (a Address) String() string {
	if a.IsNull() {
		return "<null>"
	}
	return fmt.Sprintf("0x%x", uint64(a))
}

// Area is a half-open address range [Base, Base+Size).
type Area struct {
	Base Address
	Size uint64
}

// NewArea builds the half-open range [base, base+size).
func NewArea(base Address, size uint64) Area {
	return Area{Base: base, Size: size}
}

// End returns the exclusive upper bound of the area.
func (m Area) End() Address { return m.Base.Add(m.Size) }

// Empty reports whether the area contains no addresses.
func (m Area) Empty() bool { return m.Size == 0 || m.Base.IsNull() }

// Contains reports whether a falls within [Base, End).
func (m Area) Contains(a Address) bool {
	if m.Empty() || a.IsNull() {
		return false
	}
	return a >= m.Base && a < m.End()
}

// Meet reports whether m and o have non-empty intersection.
func (m Area) Meet(o Area) bool {
	if m.Empty() || o.Empty() {
		return false
	}
	return m.Base < o.End() && o.Base < m.End()
}

func (m Area) String() string {
	return fmt.Sprintf("[%s, %s)", m.Base, m.End())
}
