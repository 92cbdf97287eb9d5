package v1alpha1

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/utils/ptr"
)

func TestDomain_ReplicaCount(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		spec    DomainSpec
		cluster string
		want    int32
	}{
		"override wins over default": {
			spec: DomainSpec{
				Replicas: ptr.To(int32(3)),
				Clusters: []ClusterSpec{{ClusterName: "cluster1", Replicas: ptr.To(int32(5))}},
			},
			cluster: "cluster1",
			want:    5,
		},
		"zero override wins over default": {
			spec: DomainSpec{
				Replicas: ptr.To(int32(3)),
				Clusters: []ClusterSpec{{ClusterName: "cluster1", Replicas: ptr.To(int32(0))}},
			},
			cluster: "cluster1",
			want:    0,
		},
		"cluster entry without override uses default": {
			spec: DomainSpec{
				Replicas: ptr.To(int32(4)),
				Clusters: []ClusterSpec{{ClusterName: "cluster1"}},
			},
			cluster: "cluster1",
			want:    4,
		},
		"unknown cluster uses default": {
			spec: DomainSpec{
				Replicas: ptr.To(int32(4)),
				Clusters: []ClusterSpec{{ClusterName: "other", Replicas: ptr.To(int32(1))}},
			},
			cluster: "cluster1",
			want:    4,
		},
		"unset default falls back to limit": {
			spec:    DomainSpec{},
			cluster: "cluster1",
			want:    DefaultReplicaLimit,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := &Domain{Spec: tc.spec}
			if got := d.ReplicaCount(tc.cluster); got != tc.want {
				t.Errorf("ReplicaCount(%q) = %d, want %d", tc.cluster, got, tc.want)
			}
		})
	}
}

func TestDomain_SetReplicaCount(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		clusters []ClusterSpec
		want     []ClusterSpec
	}{
		"updates existing override": {
			clusters: []ClusterSpec{
				{ClusterName: "cluster0", Replicas: ptr.To(int32(2))},
				{ClusterName: "cluster1", Replicas: ptr.To(int32(1))},
			},
			want: []ClusterSpec{
				{ClusterName: "cluster0", Replicas: ptr.To(int32(2))},
				{ClusterName: "cluster1", Replicas: ptr.To(int32(5))},
			},
		},
		"fills entry without override": {
			clusters: []ClusterSpec{{ClusterName: "cluster1"}},
			want:     []ClusterSpec{{ClusterName: "cluster1", Replicas: ptr.To(int32(5))}},
		},
		"creates missing entry": {
			clusters: nil,
			want:     []ClusterSpec{{ClusterName: "cluster1", Replicas: ptr.To(int32(5))}},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := &Domain{Spec: DomainSpec{Clusters: tc.clusters}}
			d.SetReplicaCount("cluster1", 5)
			if diff := cmp.Diff(tc.want, d.Spec.Clusters); diff != "" {
				t.Errorf("Clusters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDomain_DeepCopyIsolatesOverrides(t *testing.T) {
	t.Parallel()

	original := &Domain{Spec: DomainSpec{
		DomainUID: "uid1",
		Clusters:  []ClusterSpec{{ClusterName: "cluster1", Replicas: ptr.To(int32(1))}},
	}}

	copied := original.DeepCopy()
	copied.SetReplicaCount("cluster1", 7)
	copied.SetReplicaCount("cluster2", 3)

	if got := original.ReplicaCount("cluster1"); got != 1 {
		t.Errorf("original cluster1 replicas = %d, want 1", got)
	}
	if len(original.Spec.Clusters) != 1 {
		t.Errorf("original clusters = %d entries, want 1", len(original.Spec.Clusters))
	}
}
