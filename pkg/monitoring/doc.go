// Package monitoring provides Prometheus metrics and tracing helpers for
// the Domain Operator. It exposes scale-path counters and histograms plus
// per-cluster replica gauges that complement the generic controller-runtime
// metrics already registered by the framework.
//
// All metrics follow the naming convention domain_operator_<metric>_<unit>
// and are registered against controller-runtime's default Prometheus registry
// on import.
//
// Usage in the scale path:
//
//	ctx, span := monitoring.StartScaleSpan(ctx, uid, cluster)
//	defer span.End()
//	monitoring.RecordScaleRequest(result, elapsed)
//
// Usage in controllers:
//
//	monitoring.SetClusterReplicas(domain.Name, domain.Namespace, cluster, desired, maximum)
package monitoring
