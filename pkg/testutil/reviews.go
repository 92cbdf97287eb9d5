package testutil

import (
	"context"

	authenticationv1 "k8s.io/api/authentication/v1"
	authorizationv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
)

// NewScheme returns a scheme with the built-in Kubernetes types and the
// Domain API registered.
func NewScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(s)
	_ = domainv1alpha1.AddToScheme(s)
	return s
}

// ReviewResponder answers TokenReview and SubjectAccessReview creations the
// way the API server would, without persisting anything.
type ReviewResponder struct {
	// Tokens maps accepted bearer tokens to the user they authenticate.
	Tokens map[string]authenticationv1.UserInfo
	// Allowed maps usernames to the verbs they may perform on domains.
	Allowed map[string][]string

	// TokenReviews and AccessReviews record the reviews received.
	TokenReviews  []authenticationv1.TokenReview
	AccessReviews []authorizationv1.SubjectAccessReview
}

// Funcs returns interceptor functions that answer reviews and fall through
// to the wrapped client for every other object.
func (r *ReviewResponder) Funcs() interceptor.Funcs {
	return interceptor.Funcs{
		Create: func(
			ctx context.Context,
			c client.WithWatch,
			obj client.Object,
			opts ...client.CreateOption,
		) error {
			switch review := obj.(type) {
			case *authenticationv1.TokenReview:
				if user, ok := r.Tokens[review.Spec.Token]; ok {
					review.Status = authenticationv1.TokenReviewStatus{Authenticated: true, User: user}
				} else {
					review.Status = authenticationv1.TokenReviewStatus{Error: "invalid bearer token"}
				}
				r.TokenReviews = append(r.TokenReviews, *review.DeepCopy())
				return nil
			case *authorizationv1.SubjectAccessReview:
				review.Status = authorizationv1.SubjectAccessReviewStatus{}
				for _, verb := range r.Allowed[review.Spec.User] {
					if review.Spec.ResourceAttributes != nil && review.Spec.ResourceAttributes.Verb == verb {
						review.Status.Allowed = true
					}
				}
				r.AccessReviews = append(r.AccessReviews, *review.DeepCopy())
				return nil
			}
			return c.Create(ctx, obj, opts...)
		},
	}
}
