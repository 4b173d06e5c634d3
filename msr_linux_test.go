//go:build linux

package cpuinfo

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// msrDeviceFile writes values at their address offsets into a sparse file,
// which reads the same way as the msr driver.
func msrDeviceFile(t *testing.T, values map[uint32]uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msr")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for addr, v := range values {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		_, err := f.WriteAt(buf[:], int64(addr))
		require.NoError(t, err)
	}
	return path
}

func TestLinuxMSRRead(t *testing.T) {
	path := msrDeviceFile(t, map[uint32]uint64{0xce: 0x0000_0C08_2000_2400, 0x1b: 0xfee00900})
	m, err := openMSRDevice(path)
	require.NoError(t, err)
	defer m.Close()

	v, err := m.ReadMSR(0xce)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0000_0C08_2000_2400), v)

	value, err := platformInfo().Read(m)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0000_0C08_2000_2400), value.Value)

	v, err = m.ReadMSR(0x1b)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfee00900), v)
}

func TestLinuxMSRShortRead(t *testing.T) {
	path := msrDeviceFile(t, map[uint32]uint64{0x10: 1})
	m, err := openMSRDevice(path)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.ReadMSR(0x14)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotAvailable))
}

func TestOpenMSRDeviceMissing(t *testing.T) {
	_, err := openMSRDevice(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAvailable)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Contains(t, srcErr.Source, "nope")
}
