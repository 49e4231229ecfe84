// Package metrics exposes Prometheus collectors for the ecrsync controller.
// Collectors register with the controller-runtime registry and are served
// on the manager's metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	runtimemetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Sweeps counts completed full reconciliation sweeps.
	Sweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecrsync_sweeps_total",
		Help: "Number of completed full reconciliation sweeps.",
	})

	// SweepErrors counts sweeps aborted by a namespace listing or token failure.
	SweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecrsync_sweep_errors_total",
		Help: "Number of sweeps aborted before fan-out by a listing or token failure.",
	})

	// NamespaceSyncs counts per-namespace reconciliation outcomes.
	NamespaceSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecrsync_namespace_syncs_total",
		Help: "Number of per-namespace secret reconciliations, labeled by result.",
	}, []string{"result"})

	// TokenRequests counts token lookups by the source that served them.
	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecrsync_token_requests_total",
		Help: "Number of authorization token requests, labeled by source (cache or provider).",
	}, []string{"source"})

	// WatchRestarts counts namespace watch stream re-establishments.
	WatchRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecrsync_watch_restarts_total",
		Help: "Number of times the namespace watch stream ended and was re-established.",
	})
)

func init() {
	runtimemetrics.Registry.MustRegister(
		Sweeps,
		SweepErrors,
		NamespaceSyncs,
		TokenRequests,
		WatchRestarts,
	)
}
