package cpuinfo

import (
	"fmt"
	"runtime"
)

// hypervisorPresent is CPUID leaf 1 ECX bit 31.
const hypervisorPresent = 1 << 31

// HostSource reads leaves with the CPUID instruction of the processor the
// calling thread runs on. Use [PinToCPU] to choose the processor.
//
// Leaves past the maximum their range reports are absent, since processors
// answer those with data from an unrelated leaf. The hypervisor range is
// absent unless the hypervisor-present bit is set.
type HostSource struct {
	query   func(leaf, subLeaf uint32) Registers
	max     [len(hostRanges)]uint32
	present [len(hostRanges)]bool
}

var hostRanges = [...]Function{FunctionBasic, FunctionHypervisor, FunctionExtended}

// NewHostSource reads the range maxima of the current processor. It
// returns an error wrapping [ErrNotAvailable] on architectures without
// CPUID.
func NewHostSource() (*HostSource, error) {
	if hostCPUID == nil {
		return nil, &SourceError{
			Source: "cpuid",
			Err:    fmt.Errorf("%s: %w", runtime.GOARCH, ErrNotAvailable),
		}
	}

	return newHostSource(hostCPUID), nil
}

func newHostSource(query func(leaf, subLeaf uint32) Registers) *HostSource {
	h := &HostSource{query: query}

	basic := query(FunctionBasic.Start(), 0)
	h.max[FunctionBasic] = basic.EAX
	h.present[FunctionBasic] = true

	if basic.EAX >= 1 && query(1, 0).ECX&hypervisorPresent != 0 {
		h.detect(FunctionHypervisor)
	}
	h.detect(FunctionExtended)

	return h
}

func (h *HostSource) detect(fn Function) {
	first := h.query(fn.Start(), 0)
	if fn.Contains(first.EAX) {
		h.max[fn] = first.EAX
		h.present[fn] = true
	}
}

// Max returns the highest leaf of fn, and false when the range is absent.
func (h *HostSource) Max(fn Function) (uint32, bool) {
	if int(fn) < 0 || int(fn) >= len(hostRanges) {
		return 0, false
	}
	return h.max[fn], h.present[fn]
}

// Register executes CPUID for leaf and subLeaf.
func (h *HostSource) Register(leaf, subLeaf uint32) (Registers, bool) {
	fn, ok := FunctionOf(leaf)
	if !ok || !h.present[fn] || leaf > h.max[fn] {
		return Registers{}, false
	}

	return h.query(leaf, subLeaf), true
}
