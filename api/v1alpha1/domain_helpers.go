/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import "k8s.io/utils/ptr"

// DefaultReplicaCount returns the domain-wide replica count.
func (d *Domain) DefaultReplicaCount() int32 {
	return ptr.Deref(d.Spec.Replicas, DefaultReplicaLimit)
}

// ClusterReplicas returns the per-cluster override for the named cluster, or
// nil when the cluster has none.
func (d *Domain) ClusterReplicas(clusterName string) *int32 {
	for i := range d.Spec.Clusters {
		if d.Spec.Clusters[i].ClusterName == clusterName {
			return d.Spec.Clusters[i].Replicas
		}
	}
	return nil
}

// ReplicaCount returns the effective replica count of the named cluster: its
// override when present, otherwise the domain default.
func (d *Domain) ReplicaCount(clusterName string) int32 {
	if replicas := d.ClusterReplicas(clusterName); replicas != nil {
		return *replicas
	}
	return d.DefaultReplicaCount()
}

// SetReplicaCount sets the override for the named cluster, adding a cluster
// entry when none exists. All other fields are left untouched.
func (d *Domain) SetReplicaCount(clusterName string, replicas int32) {
	for i := range d.Spec.Clusters {
		if d.Spec.Clusters[i].ClusterName == clusterName {
			d.Spec.Clusters[i].Replicas = ptr.To(replicas)
			return
		}
	}
	d.Spec.Clusters = append(d.Spec.Clusters, ClusterSpec{
		ClusterName: clusterName,
		Replicas:    ptr.To(replicas),
	})
}
