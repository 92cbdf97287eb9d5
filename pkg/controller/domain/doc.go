// Package domain contains the Domain status reconciler.
//
// The reconciler does not create workloads. It reports, per cluster, the
// effective desired replica count from the spec next to the number of
// members the live topology allows, and records whether that topology could
// be retrieved in the TopologyAvailable condition. Changes to the topology
// ConfigMap of a Domain trigger a reconcile of that Domain.
package domain
