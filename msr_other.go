//go:build !linux

package cpuinfo

import (
	"fmt"
	"runtime"
)

// LinuxMSR is only available on Linux.
type LinuxMSR struct{}

// OpenLinuxMSR always fails with [ErrNotAvailable] outside Linux.
func OpenLinuxMSR(cpu int) (*LinuxMSR, error) {
	return nil, &SourceError{
		Source: fmt.Sprintf("/dev/cpu/%d/msr", cpu),
		Err:    fmt.Errorf("%s: %w", runtime.GOOS, ErrNotAvailable),
	}
}

// ReadMSR implements [MSRSource].
func (*LinuxMSR) ReadMSR(uint32) (uint64, error) { return 0, ErrNotAvailable }

// Close does nothing.
func (*LinuxMSR) Close() error { return nil }
