//go:build linux

package cpuinfo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// LinuxMSR reads model-specific registers through the msr driver. The
// register address is the file offset of an 8-byte little-endian read.
// Access needs the msr kernel module and CAP_SYS_RAWIO.
type LinuxMSR struct {
	path string
	fd   int
}

// OpenLinuxMSR opens /dev/cpu/<cpu>/msr. A missing device or denied access
// is reported as an error wrapping [ErrNotAvailable].
func OpenLinuxMSR(cpu int) (*LinuxMSR, error) {
	return openMSRDevice(fmt.Sprintf("/dev/cpu/%d/msr", cpu))
}

func openMSRDevice(path string) (*LinuxMSR, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			err = fmt.Errorf("%w: %w", ErrNotAvailable, err)
		}
		return nil, &SourceError{Source: path, Err: err}
	}

	return &LinuxMSR{path: path, fd: fd}, nil
}

// ReadMSR implements [MSRSource]. The driver fails reads of registers the
// processor does not implement with EIO, which is returned as an I/O error.
func (m *LinuxMSR) ReadMSR(address uint32) (uint64, error) {
	var buf [8]byte
	n, err := unix.Pread(m.fd, buf[:], int64(address))
	if err != nil {
		return 0, &SourceError{Source: m.path, Err: err}
	}
	if n != len(buf) {
		return 0, &SourceError{Source: m.path, Err: fmt.Errorf("short read at %#x: %d bytes", address, n)}
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Close releases the device.
func (m *LinuxMSR) Close() error {
	return unix.Close(m.fd)
}
