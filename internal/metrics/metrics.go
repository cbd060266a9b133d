package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Event Hive client metrics
const namespace = "eventhive"

// Registry is the Prometheus registry for all client metrics. The CLI writes it
// out in text exposition format when --metrics-file is set.
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes client version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Client version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// SessionsActive reports which identity domains currently hold a session (0 or 1).
var SessionsActive = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Whether a session is held for the identity domain (0=no, 1=yes)",
	},
	[]string{"domain"},
)

var initOnce sync.Once

// Init registers runtime collectors and sets version information. Safe to call
// more than once; collectors are registered on the first call only.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// WriteTextfile dumps the registry to path in Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
