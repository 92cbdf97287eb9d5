package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Domain-specific metric collectors.
//
// These complement the generic controller-runtime metrics (reconcile counts,
// durations, work queue depth, etc.) with operator-specific state that the
// framework cannot know about.
var (
	scaleRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_operator_scale_request_total",
			Help: "Total number of cluster scale requests, by result.",
		},
		[]string{"result"},
	)

	scaleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_operator_scale_request_duration_seconds",
			Help:    "Latency of cluster scale requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	topologyFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_operator_topology_fetch_duration_seconds",
			Help:    "Latency of live topology retrievals in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	clusterReplicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_operator_cluster_replicas",
			Help: "Replica counts for a Domain cluster.",
		},
		[]string{"domain", "namespace", "cluster", "state"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		scaleRequestTotal,
		scaleRequestDuration,
		topologyFetchDuration,
		clusterReplicas,
	)
}

// Collectors returns all registered metric collectors. This is useful for
// testing that metrics are properly registered.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		scaleRequestTotal,
		scaleRequestDuration,
		topologyFetchDuration,
		clusterReplicas,
	}
}
