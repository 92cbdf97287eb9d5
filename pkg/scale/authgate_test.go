package scale

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	authenticationv1 "k8s.io/api/authentication/v1"
	authorizationv1 "k8s.io/api/authorization/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/numtide/domain-operator/pkg/testutil"
)

func newReviewGate(t *testing.T, responder *testutil.ReviewResponder, failures *testutil.FailureConfig) *ReviewGate {
	t.Helper()
	base := fake.NewClientBuilder().
		WithScheme(testutil.NewScheme()).
		WithInterceptorFuncs(responder.Funcs()).
		Build()
	return NewReviewGate(testutil.NewFakeClientWithFailures(base, failures))
}

func TestReviewGate_Authenticate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		token        string
		failures     *testutil.FailureConfig
		want         *Identity
		wantUnauth   bool
		wantErr      bool
		wantReviews  int
		wantErrMatch string
	}{
		"valid token": {
			token: "good",
			want: &Identity{
				Username:      "alice",
				UID:           "u-1",
				Groups:        []string{"admins"},
				Extra:         map[string]authorizationv1.ExtraValue{"scopes": {"scale"}},
				Authenticated: true,
			},
			wantReviews: 1,
		},
		"empty token is rejected without a review": {
			token:       "",
			wantUnauth:  true,
			wantReviews: 0,
		},
		"unknown token": {
			token:        "bad",
			wantUnauth:   true,
			wantReviews:  1,
			wantErrMatch: "invalid bearer token",
		},
		"review transport failure": {
			token: "good",
			failures: &testutil.FailureConfig{
				OnCreate: testutil.AlwaysFail(testutil.ErrNetworkTimeout),
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			responder := &testutil.ReviewResponder{
				Tokens: map[string]authenticationv1.UserInfo{
					"good": {
						Username: "alice",
						UID:      "u-1",
						Groups:   []string{"admins"},
						Extra:    map[string]authenticationv1.ExtraValue{"scopes": {"scale"}},
					},
				},
			}
			gate := newReviewGate(t, responder, tc.failures)

			got, err := gate.Authenticate(t.Context(), tc.token)

			switch {
			case tc.wantUnauth:
				if !apierrors.IsUnauthorized(err) {
					t.Fatalf("Authenticate() error = %v, want Unauthorized", err)
				}
				if !strings.Contains(err.Error(), tc.wantErrMatch) {
					t.Errorf("Authenticate() error = %q, want it to contain %q", err.Error(), tc.wantErrMatch)
				}
			case tc.wantErr:
				if err == nil {
					t.Fatal("Authenticate() expected error, got nil")
				}
				if !errors.Is(err, testutil.ErrNetworkTimeout) {
					t.Errorf("Authenticate() error = %v, want wrapped %v", err, testutil.ErrNetworkTimeout)
				}
				return
			default:
				if err != nil {
					t.Fatalf("Authenticate() unexpected error: %v", err)
				}
				if diff := cmp.Diff(tc.want, got); diff != "" {
					t.Errorf("Identity mismatch (-want +got):\n%s", diff)
				}
			}

			if len(responder.TokenReviews) != tc.wantReviews {
				t.Errorf("TokenReviews = %d, want %d", len(responder.TokenReviews), tc.wantReviews)
			}
		})
	}
}

func TestReviewGate_Authorize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		id          *Identity
		verb        string
		failures    *testutil.FailureConfig
		wantAllowed bool
		wantErr     bool
		wantReviews int
	}{
		"allowed verb": {
			id:          &Identity{Username: "alice", Authenticated: true},
			verb:        "update",
			wantAllowed: true,
			wantReviews: 1,
		},
		"verb not granted": {
			id:          &Identity{Username: "alice", Authenticated: true},
			verb:        "delete",
			wantAllowed: false,
			wantReviews: 1,
		},
		"unknown user": {
			id:          &Identity{Username: "mallory", Authenticated: true},
			verb:        "update",
			wantAllowed: false,
			wantReviews: 1,
		},
		"unauthenticated identity is denied without a review": {
			id:          &Identity{Username: "alice"},
			verb:        "update",
			wantAllowed: false,
			wantReviews: 0,
		},
		"review transport failure": {
			id:   &Identity{Username: "alice", Authenticated: true},
			verb: "update",
			failures: &testutil.FailureConfig{
				OnCreate: testutil.AlwaysFail(testutil.ErrNetworkTimeout),
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			responder := &testutil.ReviewResponder{
				Allowed: map[string][]string{"alice": {"update"}},
			}
			gate := newReviewGate(t, responder, tc.failures)

			ref := ResourceRef{Namespace: "namespace1", Subresource: SubresourceScale}
			allowed, err := gate.Authorize(t.Context(), tc.id, tc.verb, ref)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Authorize() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize() unexpected error: %v", err)
			}
			if allowed != tc.wantAllowed {
				t.Errorf("Authorize() = %v, want %v", allowed, tc.wantAllowed)
			}
			if len(responder.AccessReviews) != tc.wantReviews {
				t.Fatalf("AccessReviews = %d, want %d", len(responder.AccessReviews), tc.wantReviews)
			}
			if tc.wantReviews == 0 {
				return
			}

			want := &authorizationv1.ResourceAttributes{
				Namespace:   "namespace1",
				Verb:        tc.verb,
				Group:       "operator.numtide.com",
				Version:     "v1alpha1",
				Resource:    "domains",
				Subresource: "scale",
			}
			if diff := cmp.Diff(want, responder.AccessReviews[0].Spec.ResourceAttributes); diff != "" {
				t.Errorf("ResourceAttributes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
