package monitoring

import "time"

// Scale request results.
const (
	ResultScaled    = "scaled"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// RecordScaleRequest records a scale request's result and duration.
func RecordScaleRequest(result string, duration time.Duration) {
	scaleRequestTotal.WithLabelValues(result).Inc()
	scaleRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordTopologyFetch records the duration of a topology retrieval.
func RecordTopologyFetch(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	topologyFetchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// SetClusterReplicas sets the desired and maximum replica gauges for a
// Domain cluster.
func SetClusterReplicas(domain, namespace, cluster string, desired, maximum int32) {
	clusterReplicas.WithLabelValues(domain, namespace, cluster, "desired").Set(float64(desired))
	clusterReplicas.WithLabelValues(domain, namespace, cluster, "maximum").Set(float64(maximum))
}

// DeleteDomainReplicas drops every replica gauge of a Domain.
func DeleteDomainReplicas(domain, namespace string) {
	clusterReplicas.DeletePartialMatch(map[string]string{
		"domain":    domain,
		"namespace": namespace,
	})
}
