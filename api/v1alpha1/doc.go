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

// Package v1alpha1 defines the API types for the Domain Operator.
//
// # Custom Resources
//
//   - Domain: the declarative desired state of one managed application. A
//     Domain carries a domain-wide default replica count and an optional
//     per-cluster override for each of its clusters.
//
// # Replica Counts
//
// The effective replica count of a cluster is its override when one is set,
// otherwise the Domain's default (spec.replicas, falling back to
// DefaultReplicaLimit). The scale REST surface only ever writes the
// per-cluster override.
//
// # Versioning
//
// This is the v1alpha1 version, indicating the API is in early development
// and may change in backward-incompatible ways.
//
// +kubebuilder:object:generate=true
// +groupName=operator.numtide.com
package v1alpha1
