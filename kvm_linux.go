//go:build linux

package cpuinfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// KVM ioctl numbers from include/uapi/linux/kvm.h, _IOWR(0xAE, nr, size).
const (
	// ioctlKVMGetSupportedCPUID encodes _IOWR(KVMIO, 0x05, struct kvm_cpuid2).
	ioctlKVMGetSupportedCPUID = 0xC008AE05
	// ioctlKVMGetMSRFeatureIndexList encodes _IOWR(KVMIO, 0x0a, struct kvm_msr_list).
	ioctlKVMGetMSRFeatureIndexList = 0xC004AE0A
	// ioctlKVMGetMSRs encodes _IOWR(KVMIO, 0x88, struct kvm_msrs).
	ioctlKVMGetMSRs = 0xC008AE88
)

// kvmMaxCPUIDEntries is the first table size tried; it doubles on E2BIG.
const kvmMaxCPUIDEntries = 80

// NewKVMSource reads the supported CPUID table from /dev/kvm.
func NewKVMSource() (*KVMSource, error) {
	var entries []kvmCPUIDEntry
	err := withKVM(func(fd int) error {
		for n := kvmMaxCPUIDEntries; ; n *= 2 {
			buf := make([]byte, kvmCPUIDHeaderSize+n*kvmCPUIDEntrySize)
			binary.NativeEndian.PutUint32(buf, uint32(n))
			_, err := kvmIoctl(fd, ioctlKVMGetSupportedCPUID, buf)
			if errors.Is(err, unix.E2BIG) && n < 1<<12 {
				continue
			}
			if err != nil {
				return fmt.Errorf("KVM_GET_SUPPORTED_CPUID: %w", err)
			}
			entries, err = decodeKVMCPUID(buf)
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	return &KVMSource{entries: entries}, nil
}

// NewKVMMSR reads every feature MSR KVM reports through /dev/kvm.
func NewKVMMSR() (*KVMMSR, error) {
	var values map[uint32]uint64
	err := withKVM(func(fd int) error {
		indices, err := kvmFeatureMSRs(fd)
		if err != nil {
			return err
		}
		if len(indices) == 0 {
			values = map[uint32]uint64{}
			return nil
		}

		buf := encodeKVMMSRs(indices)
		n, err := kvmIoctl(fd, ioctlKVMGetMSRs, buf)
		if err != nil {
			return fmt.Errorf("KVM_GET_MSRS: %w", err)
		}
		values = decodeKVMMSRs(buf, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &KVMMSR{values: values}, nil
}

// kvmFeatureMSRs asks for the list size first, then for the list.
func kvmFeatureMSRs(fd int) ([]uint32, error) {
	head := make([]byte, 4)
	_, err := kvmIoctl(fd, ioctlKVMGetMSRFeatureIndexList, head)
	if err != nil && !errors.Is(err, unix.E2BIG) {
		return nil, fmt.Errorf("KVM_GET_MSR_FEATURE_INDEX_LIST: %w", err)
	}

	n := int(binary.NativeEndian.Uint32(head))
	buf := make([]byte, 4+4*n)
	binary.NativeEndian.PutUint32(buf, uint32(n))
	if _, err := kvmIoctl(fd, ioctlKVMGetMSRFeatureIndexList, buf); err != nil {
		return nil, fmt.Errorf("KVM_GET_MSR_FEATURE_INDEX_LIST: %w", err)
	}

	n = int(binary.NativeEndian.Uint32(buf))
	indices := make([]uint32, 0, n)
	for i := range n {
		indices = append(indices, binary.NativeEndian.Uint32(buf[4+4*i:]))
	}
	return indices, nil
}

// withKVM runs fn with an open /dev/kvm descriptor.
func withKVM(fn func(fd int) error) error {
	fd, err := unix.Open(kvmDevice, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			err = fmt.Errorf("%w: %w", ErrNotAvailable, err)
		}
		return &SourceError{Source: kvmDevice, Err: err}
	}
	defer unix.Close(fd)

	if err := fn(fd); err != nil {
		return &SourceError{Source: kvmDevice, Err: err}
	}
	return nil
}

func kvmIoctl(fd int, req uintptr, buf []byte) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}
