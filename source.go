package cpuinfo

import (
	"fmt"
	"iter"
)

// Registers is the register quad returned by one CPUID leaf/sub-leaf query.
type Registers struct {
	EAX uint32 `json:"eax" yaml:"eax"`
	EBX uint32 `json:"ebx" yaml:"ebx"`
	ECX uint32 `json:"ecx" yaml:"ecx"`
	EDX uint32 `json:"edx" yaml:"edx"`
}

// Empty reports whether r looks like the answer to an unsupported leaf:
// EAX and EBX are zero and bits 8-15 of ECX are clear.
func (r Registers) Empty() bool {
	return r.EAX == 0 && r.EBX == 0 && r.ECX&0x0000FF00 == 0
}

// String formats the quad as four zero-padded hexadecimal words.
func (r Registers) String() string {
	return fmt.Sprintf("%#010x %#010x %#010x %#010x", r.EAX, r.EBX, r.ECX, r.EDX)
}

// RegisterSource answers CPUID queries. Implementations report ok=false
// when the leaf or sub-leaf is not supported by the backend: the hardware
// maximum was exceeded, the hypervisor does not expose it, or the device
// is unavailable.
//
// The core never retries a query; any retry or timeout policy belongs to
// the source.
type RegisterSource interface {
	Register(leaf, subLeaf uint32) (Registers, bool)
}

// RegisterSourceFunc adapts a function to [RegisterSource].
type RegisterSourceFunc func(leaf, subLeaf uint32) (Registers, bool)

// Register calls f.
func (f RegisterSourceFunc) Register(leaf, subLeaf uint32) (Registers, bool) {
	return f(leaf, subLeaf)
}

// LeafAddr addresses one CPUID query.
type LeafAddr struct {
	Leaf    uint32 `json:"leaf" yaml:"leaf"`
	SubLeaf uint32 `json:"sub_leaf" yaml:"sub_leaf"`
}

// String formats the address as "(leaf,sub_leaf)" in hexadecimal.
func (a LeafAddr) String() string {
	return fmt.Sprintf("(%#010x,%#010x)", a.Leaf, a.SubLeaf)
}

// MapSource is an in-memory [RegisterSource]. A query for sub-leaf n falls
// back to sub-leaf 0 when n is not stored and IndexedLeaves does not list
// the leaf, matching leaves whose output ignores the sub-leaf index.
type MapSource struct {
	Quads         map[LeafAddr]Registers
	IndexedLeaves map[uint32]bool
}

// NewMapSource returns an empty MapSource.
func NewMapSource() *MapSource {
	return &MapSource{
		Quads:         make(map[LeafAddr]Registers),
		IndexedLeaves: make(map[uint32]bool),
	}
}

// Set stores regs for leaf/subLeaf. Storing a sub-leaf other than 0 marks
// the leaf as indexed.
func (m *MapSource) Set(leaf, subLeaf uint32, regs Registers) *MapSource {
	m.Quads[LeafAddr{Leaf: leaf, SubLeaf: subLeaf}] = regs
	if subLeaf != 0 {
		m.IndexedLeaves[leaf] = true
	}
	return m
}

// Register implements [RegisterSource].
func (m *MapSource) Register(leaf, subLeaf uint32) (Registers, bool) {
	if regs, ok := m.Quads[LeafAddr{Leaf: leaf, SubLeaf: subLeaf}]; ok {
		return regs, true
	}
	if subLeaf != 0 && !m.IndexedLeaves[leaf] {
		regs, ok := m.Quads[LeafAddr{Leaf: leaf}]
		return regs, ok
	}
	return Registers{}, false
}

// Function is one of the CPUID leaf ranges. Each range reports its highest
// leaf in EAX of its first leaf.
type Function int

const (
	// FunctionBasic covers leaves 0x0 to 0x3FFFFFFF.
	FunctionBasic Function = iota
	// FunctionHypervisor covers leaves 0x40000000 to 0x4FFFFFFF.
	FunctionHypervisor
	// FunctionExtended covers leaves 0x80000000 and above.
	FunctionExtended
)

// Functions lists every leaf range in scan order.
var Functions = []Function{FunctionBasic, FunctionHypervisor, FunctionExtended}

// String returns the range name.
func (f Function) String() string {
	switch f {
	case FunctionBasic:
		return "basic"
	case FunctionHypervisor:
		return "hypervisor"
	case FunctionExtended:
		return "extended"
	default:
		return fmt.Sprintf("function(%d)", int(f))
	}
}

// Start returns the first leaf of the range.
func (f Function) Start() uint32 {
	switch f {
	case FunctionHypervisor:
		return 0x40000000
	case FunctionExtended:
		return 0x80000000
	default:
		return 0
	}
}

// Contains reports whether leaf belongs to the range.
func (f Function) Contains(leaf uint32) bool {
	switch f {
	case FunctionBasic:
		return leaf < 0x40000000
	case FunctionHypervisor:
		return leaf >= 0x40000000 && leaf < 0x50000000
	case FunctionExtended:
		return leaf >= 0x80000000
	default:
		return false
	}
}

// FunctionOf returns the range that contains leaf. Leaves between the
// hypervisor and extended ranges belong to no range.
func FunctionOf(leaf uint32) (Function, bool) {
	for _, f := range Functions {
		if f.Contains(leaf) {
			return f, true
		}
	}
	return 0, false
}

// maxSubLeaves bounds the sub-leaf walk of [ScanFunction] for sources that
// never repeat or zero out.
const maxSubLeaves = 256

// ScanFunction walks every leaf of fn up to the maximum reported by the
// source, and every sub-leaf of each leaf until the source reports an
// empty quad, an absent sub-leaf or the same quad as the previous
// sub-leaf. It yields nothing when the range's first leaf is absent or
// reports a maximum outside the range.
func ScanFunction(src RegisterSource, fn Function) iter.Seq2[LeafAddr, Registers] {
	return func(yield func(LeafAddr, Registers) bool) {
		first, ok := src.Register(fn.Start(), 0)
		if !ok || !fn.Contains(first.EAX) {
			return
		}
		last := first.EAX
		for leaf := fn.Start(); ; leaf++ {
			var prev *Registers
			for sub := uint32(0); sub < maxSubLeaves; sub++ {
				regs, ok := src.Register(leaf, sub)
				if !ok || regs.Empty() || (prev != nil && *prev == regs) {
					break
				}
				if !yield(LeafAddr{Leaf: leaf, SubLeaf: sub}, regs) {
					return
				}
				prev = &regs
			}
			if leaf == last {
				return
			}
		}
	}
}
