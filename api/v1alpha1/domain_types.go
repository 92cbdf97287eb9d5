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

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NOTE: json tags are required.  Any new fields you add must have json tags for
// the fields to be serialized.

// DefaultReplicaLimit is the domain-wide replica count used when spec.replicas
// is not set.
const DefaultReplicaLimit int32 = 2

// ConditionTopologyAvailable reports whether the live topology of the Domain
// could be retrieved on the last reconcile.
const ConditionTopologyAvailable = "TopologyAvailable"

// DomainSpec defines the desired state of Domain.
type DomainSpec struct {
	// DomainUID uniquely identifies the Domain across all watched namespaces.
	// It is the identifier used by the scale REST surface.
	// +kubebuilder:validation:MinLength=1
	// +kubebuilder:validation:MaxLength=45
	// +kubebuilder:validation:XValidation:rule="self == oldSelf",message="domainUID is immutable"
	DomainUID string `json:"domainUID"`

	// Replicas is the default number of running members for any cluster that
	// has no override of its own.
	// +kubebuilder:validation:Minimum=0
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`

	// Clusters holds the per-cluster settings.
	// +listType=map
	// +listMapKey=clusterName
	// +optional
	Clusters []ClusterSpec `json:"clusters,omitempty"`
}

// ClusterSpec defines the per-cluster overrides of a Domain.
type ClusterSpec struct {
	// ClusterName is the name of the cluster as configured in the domain.
	// +kubebuilder:validation:MinLength=1
	ClusterName string `json:"clusterName"`

	// Replicas overrides the Domain default replica count for this cluster.
	// +kubebuilder:validation:Minimum=0
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`
}

// ClusterStatus reports the observed state of one cluster.
type ClusterStatus struct {
	// ClusterName is the name of the cluster.
	ClusterName string `json:"clusterName"`

	// Replicas is the effective desired replica count.
	Replicas int32 `json:"replicas"`

	// MaximumReplicas is the number of members configured for the cluster in
	// the live topology. Zero when the topology is unknown.
	// +optional
	MaximumReplicas int32 `json:"maximumReplicas,omitempty"`
}

// DomainStatus defines the observed state of Domain.
type DomainStatus struct {
	// ObservedGeneration reflects the generation of the most recently observed Domain spec.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Clusters reports every cluster declared in the spec or present in the topology.
	// +listType=map
	// +listMapKey=clusterName
	// +optional
	Clusters []ClusterStatus `json:"clusters,omitempty"`

	// Conditions represent the latest available observations of the Domain's state.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="UID",type=string,JSONPath=`.spec.domainUID`
// +kubebuilder:printcolumn:name="Replicas",type=integer,JSONPath=`.spec.replicas`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// Domain is the Schema for the domains API
type Domain struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// spec defines the desired state of Domain
	// +required
	Spec DomainSpec `json:"spec"`

	// status defines the observed state of Domain
	// +optional
	Status DomainStatus `json:"status,omitempty,omitzero"`
}

// +kubebuilder:object:root=true

// DomainList contains a list of Domain
type DomainList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Domain `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Domain{}, &DomainList{})
}
