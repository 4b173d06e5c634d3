//go:build linux

package cpuinfo

import (
	"fmt"
	"math/bits"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinToCPU locks the calling goroutine to its OS thread and restricts that
// thread to cpu, so every CPUID and MSR query that follows runs on one
// processor. The returned function restores the previous affinity and
// unlocks the thread. A cpu outside the kernel affinity mask is rejected
// before the thread is locked.
func PinToCPU(cpu int) (func(), error) {
	var set unix.CPUSet
	if cpu < 0 || cpu >= len(set)*bits.UintSize {
		return nil, &SourceError{
			Source: fmt.Sprintf("cpu %d", cpu),
			Err:    fmt.Errorf("cpu number out of range [0, %d)", len(set)*bits.UintSize),
		}
	}

	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		runtime.UnlockOSThread()
		return nil, &SourceError{Source: fmt.Sprintf("cpu %d", cpu), Err: err}
	}

	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, &SourceError{Source: fmt.Sprintf("cpu %d", cpu), Err: err}
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
		runtime.UnlockOSThread()
	}, nil
}
