// Package testutil holds test helpers shared by the operator's packages.
//
// NewScheme registers the Kubernetes and Domain types. ReviewResponder plugs
// into a fake client and answers TokenReview and SubjectAccessReview
// creations like the API server would. NewFakeClientWithFailures wraps a
// fake client so that individual calls fail on demand:
//
//	base := fake.NewClientBuilder().WithScheme(testutil.NewScheme()).Build()
//	c := testutil.NewFakeClientWithFailures(base, &testutil.FailureConfig{
//	    OnList: testutil.FailListInNamespace("ns2", testutil.ErrInjected),
//	})
package testutil
