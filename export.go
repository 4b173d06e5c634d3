package cpuinfo

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// exportMetrics holds the gauges of one textfile export.
type exportMetrics struct {
	Value *prometheus.GaugeVec
	Info  *prometheus.GaugeVec
}

func newExportMetrics(reg prometheus.Registerer) *exportMetrics {
	factory := promauto.With(reg)

	return &exportMetrics{
		Value: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpuinfo_fact_value",
			Help: "Numeric value of a CPU fact; flags are 0 or 1",
		}, []string{"fact"}),
		Info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpuinfo_fact_info",
			Help: "Textual CPU fact carried in the value label",
		}, []string{"fact", "value"}),
	}
}

func (m *exportMetrics) observe(f Fact[Value]) {
	switch f.Value.Kind() {
	case KindBool:
		b, _ := f.Value.Bool()
		v := 0.0
		if b {
			v = 1
		}
		m.Value.WithLabelValues(f.Name).Set(v)
	case KindUint:
		u, _ := f.Value.Uint()
		m.Value.WithLabelValues(f.Name).Set(float64(u))
	case KindString:
		s, _ := f.Value.Text()
		m.Info.WithLabelValues(f.Name, s).Set(1)
	}
}

// WritePrometheusTextfile writes facts in the Prometheus text exposition
// format for the node exporter textfile collector. The file is written to a
// temporary name and renamed into place.
//
// Integers above 2^53 lose precision as gauge values.
func WritePrometheusTextfile(path string, facts []Fact[Value]) error {
	reg := prometheus.NewRegistry()
	m := newExportMetrics(reg)
	for _, f := range NewFactSet(facts).backing {
		m.observe(f)
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing textfile %s: %w", path, err)
	}

	return nil
}
