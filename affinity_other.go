//go:build !linux

package cpuinfo

import (
	"fmt"
	"runtime"
)

// PinToCPU fails with [ErrNotAvailable] where thread affinity is not
// supported. Queries then run on whichever processor the scheduler picks.
func PinToCPU(cpu int) (func(), error) {
	return nil, &SourceError{
		Source: fmt.Sprintf("cpu %d", cpu),
		Err:    fmt.Errorf("%s: %w", runtime.GOOS, ErrNotAvailable),
	}
}
