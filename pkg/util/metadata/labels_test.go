package metadata_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/numtide/domain-operator/pkg/util/metadata"
)

func TestBuildStandardLabels(t *testing.T) {
	tests := map[string]struct {
		instance  string
		component string
		want      map[string]string
	}{
		"typical case": {
			instance:  "domain-operator-rest",
			component: metadata.ComponentServingCert,
			want: map[string]string{
				"app.kubernetes.io/name":       "domain-operator",
				"app.kubernetes.io/instance":   "domain-operator-rest",
				"app.kubernetes.io/component":  "serving-cert",
				"app.kubernetes.io/managed-by": "domain-operator",
			},
		},
		"empty strings allowed": {
			want: map[string]string{
				"app.kubernetes.io/name":       "domain-operator",
				"app.kubernetes.io/instance":   "",
				"app.kubernetes.io/component":  "",
				"app.kubernetes.io/managed-by": "domain-operator",
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := metadata.BuildStandardLabels(tc.instance, tc.component)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("BuildStandardLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddDomainLabel(t *testing.T) {
	got := metadata.AddDomainLabel(map[string]string{"a": "b"}, "uid1")
	want := map[string]string{"a": "b", "operator.numtide.com/domain-uid": "uid1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AddDomainLabel() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeLabels(t *testing.T) {
	tests := map[string]struct {
		standardLabels map[string]string
		customLabels   map[string]string
		want           map[string]string
	}{
		"standard labels win on conflicts": {
			standardLabels: map[string]string{"app.kubernetes.io/name": "domain-operator"},
			customLabels: map[string]string{
				"app.kubernetes.io/name": "something-else",
				"team":                   "platform",
			},
			want: map[string]string{
				"app.kubernetes.io/name": "domain-operator",
				"team":                   "platform",
			},
		},
		"nil custom labels": {
			standardLabels: map[string]string{"app.kubernetes.io/name": "domain-operator"},
			want:           map[string]string{"app.kubernetes.io/name": "domain-operator"},
		},
		"both nil": {
			want: map[string]string{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := metadata.MergeLabels(tc.standardLabels, tc.customLabels)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MergeLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
