//go:build !linux

package cpuinfo

import (
	"fmt"
	"runtime"
)

// NewKVMSource fails with [ErrNotAvailable] outside Linux.
func NewKVMSource() (*KVMSource, error) {
	return nil, &SourceError{Source: kvmDevice, Err: fmt.Errorf("%s: %w", runtime.GOOS, ErrNotAvailable)}
}

// NewKVMMSR fails with [ErrNotAvailable] outside Linux.
func NewKVMMSR() (*KVMMSR, error) {
	return nil, &SourceError{Source: kvmDevice, Err: fmt.Errorf("%s: %w", runtime.GOOS, ErrNotAvailable)}
}
