package cpuinfo

import (
	"encoding/binary"
	"fmt"
)

// kvmDevice is the KVM system device.
const kvmDevice = "/dev/kvm"

// kvmCPUIDFlagSignificantIndex marks CPUID entries whose sub-leaf index
// selects the entry.
const kvmCPUIDFlagSignificantIndex = 1

// Layout of struct kvm_cpuid2 and struct kvm_msrs from the KVM UAPI header.
const (
	kvmCPUIDHeaderSize = 8
	kvmCPUIDEntrySize  = 40
	kvmMSRsHeaderSize  = 8
	kvmMSREntrySize    = 16
)

type kvmCPUIDEntry struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Regs     Registers
}

// KVMSource answers leaves from the CPUID table KVM can expose to guests
// (KVM_GET_SUPPORTED_CPUID) instead of the host processor.
type KVMSource struct {
	entries []kvmCPUIDEntry
}

// Register implements [RegisterSource]. Entries without the significant
// index flag answer only sub-leaf 0.
func (k *KVMSource) Register(leaf, subLeaf uint32) (Registers, bool) {
	for _, e := range k.entries {
		if e.Function != leaf {
			continue
		}
		if (subLeaf == 0 && e.Flags&kvmCPUIDFlagSignificantIndex == 0) || subLeaf == e.Index {
			return e.Regs, true
		}
	}
	return Registers{}, false
}

// Len returns the number of table entries.
func (k *KVMSource) Len() int { return len(k.entries) }

// decodeKVMCPUID parses a struct kvm_cpuid2 buffer.
func decodeKVMCPUID(buf []byte) ([]kvmCPUIDEntry, error) {
	if len(buf) < kvmCPUIDHeaderSize {
		return nil, fmt.Errorf("kvm cpuid table: %d byte header", len(buf))
	}
	n := int(binary.NativeEndian.Uint32(buf))
	if len(buf) < kvmCPUIDHeaderSize+n*kvmCPUIDEntrySize {
		return nil, fmt.Errorf("kvm cpuid table: %d entries do not fit %d bytes", n, len(buf))
	}

	entries := make([]kvmCPUIDEntry, n)
	for i := range entries {
		e := buf[kvmCPUIDHeaderSize+i*kvmCPUIDEntrySize:]
		u32 := func(off int) uint32 { return binary.NativeEndian.Uint32(e[off:]) }
		entries[i] = kvmCPUIDEntry{
			Function: u32(0),
			Index:    u32(4),
			Flags:    u32(8),
			Regs:     Registers{EAX: u32(12), EBX: u32(16), ECX: u32(20), EDX: u32(24)},
		}
	}
	return entries, nil
}

// KVMMSR answers the feature MSRs KVM reports for guests
// (KVM_GET_MSR_FEATURE_INDEX_LIST read with the system KVM_GET_MSRS).
type KVMMSR struct {
	values map[uint32]uint64
}

// ReadMSR implements [MSRSource]. Registers outside the feature list are
// not available.
func (k *KVMMSR) ReadMSR(address uint32) (uint64, error) {
	v, ok := k.values[address]
	if !ok {
		return 0, fmt.Errorf("%s msr %#x: %w", kvmDevice, address, ErrNotAvailable)
	}
	return v, nil
}

// Len returns the number of feature MSRs.
func (k *KVMMSR) Len() int { return len(k.values) }

// encodeKVMMSRs builds a struct kvm_msrs request for indices.
func encodeKVMMSRs(indices []uint32) []byte {
	buf := make([]byte, kvmMSRsHeaderSize+len(indices)*kvmMSREntrySize)
	binary.NativeEndian.PutUint32(buf, uint32(len(indices)))
	for i, index := range indices {
		binary.NativeEndian.PutUint32(buf[kvmMSRsHeaderSize+i*kvmMSREntrySize:], index)
	}
	return buf
}

// decodeKVMMSRs reads the first n entries of a struct kvm_msrs buffer.
func decodeKVMMSRs(buf []byte, n int) map[uint32]uint64 {
	values := make(map[uint32]uint64, n)
	for i := 0; i < n && kvmMSRsHeaderSize+(i+1)*kvmMSREntrySize <= len(buf); i++ {
		e := buf[kvmMSRsHeaderSize+i*kvmMSREntrySize:]
		values[binary.NativeEndian.Uint32(e)] = binary.NativeEndian.Uint64(e[8:])
	}
	return values
}
