package cpuinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheusTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuinfo.prom")
	facts := []Fact[Value]{
		NewFact("cpuid/vendor/type", StringValue("GenuineIntel")),
		NewFact("cpuid/features/edx/sse2", BoolValue(true)),
		NewFact("cpuid/features/ecx/hypervisor", BoolValue(false)),
		NewFact("cpuid/vendor/max_leaf", UintValue(0x16)),
	}

	require.NoError(t, WritePrometheusTextfile(path, facts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# TYPE cpuinfo_fact_value gauge\n")
	assert.Contains(t, out, `cpuinfo_fact_value{fact="cpuid/features/edx/sse2"} 1`+"\n")
	assert.Contains(t, out, `cpuinfo_fact_value{fact="cpuid/features/ecx/hypervisor"} 0`+"\n")
	assert.Contains(t, out, `cpuinfo_fact_value{fact="cpuid/vendor/max_leaf"} 22`+"\n")
	assert.Contains(t, out, `cpuinfo_fact_info{fact="cpuid/vendor/type",value="GenuineIntel"} 1`+"\n")
}

func TestWritePrometheusTextfileNoStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuinfo.prom")

	require.NoError(t, WritePrometheusTextfile(path, []Fact[Value]{NewFact("msr/apic_base/bsp", BoolValue(true))}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cpuinfo_fact_info")
}

func TestWritePrometheusTextfileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cpuinfo.prom")

	assert.Error(t, WritePrometheusTextfile(path, sampleFacts()))
}
