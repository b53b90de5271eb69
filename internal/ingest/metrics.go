package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons, used as the "reason" label.
const (
	SkipUndecoded = "undecoded"
	SkipUnnamed   = "unnamed"
	SkipDuplicate = "duplicate"
	SkipDecode    = "decode_error"
	SkipExtract   = "extract_error"
)

type metrics struct {
	resources prometheus.Counter
	packages  prometheus.Counter
	skipped   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		resources: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artifact_index_resources_total",
			Help: "Artifacts written to the store.",
		}),
		packages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artifact_index_packages_total",
			Help: "Distinct packages written to the store.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artifact_index_artifacts_skipped_total",
			Help: "Artifacts not written, by reason.",
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{m.resources, m.packages, m.skipped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
