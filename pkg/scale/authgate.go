package scale

import (
	"context"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	authorizationv1 "k8s.io/api/authorization/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Username      string
	UID           string
	Groups        []string
	Extra         map[string]authorizationv1.ExtraValue
	Authenticated bool
}

// ResourceRef addresses a Domain (or one of its subresources) in an access
// check. An empty Namespace is a cluster-wide check, an empty Name covers
// every Domain.
type ResourceRef struct {
	Namespace   string
	Name        string
	Subresource string
}

// AuthGate verifies callers and decides whether they may act on a Domain.
type AuthGate interface {
	// Authenticate resolves a bearer token to an Identity. It fails with an
	// Unauthorized error when the token is missing or rejected.
	Authenticate(ctx context.Context, token string) (*Identity, error)

	// Authorize reports whether id may perform verb on ref.
	Authorize(ctx context.Context, id *Identity, verb string, ref ResourceRef) (bool, error)
}

// ReviewGate is an AuthGate backed by the Kubernetes TokenReview and
// SubjectAccessReview APIs.
type ReviewGate struct {
	client client.Client
}

var _ AuthGate = &ReviewGate{}

// NewReviewGate creates a ReviewGate that submits reviews through c.
func NewReviewGate(c client.Client) *ReviewGate {
	return &ReviewGate{client: c}
}

func (g *ReviewGate) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, unauthenticated("missing bearer token")
	}

	review := &authenticationv1.TokenReview{
		Spec: authenticationv1.TokenReviewSpec{Token: token},
	}
	if err := g.client.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create TokenReview: %w", err)
	}

	if !review.Status.Authenticated {
		reason := "token was not authenticated"
		if review.Status.Error != "" {
			reason = review.Status.Error
		}
		return nil, unauthenticated(reason)
	}

	user := review.Status.User
	id := &Identity{
		Username:      user.Username,
		UID:           user.UID,
		Groups:        user.Groups,
		Authenticated: true,
	}
	if len(user.Extra) > 0 {
		id.Extra = make(map[string]authorizationv1.ExtraValue, len(user.Extra))
		for k, v := range user.Extra {
			id.Extra[k] = authorizationv1.ExtraValue(v)
		}
	}
	return id, nil
}

func (g *ReviewGate) Authorize(
	ctx context.Context,
	id *Identity,
	verb string,
	ref ResourceRef,
) (bool, error) {
	if id == nil || !id.Authenticated {
		return false, nil
	}

	review := &authorizationv1.SubjectAccessReview{
		Spec: authorizationv1.SubjectAccessReviewSpec{
			User:   id.Username,
			UID:    id.UID,
			Groups: id.Groups,
			Extra:  id.Extra,
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Namespace:   ref.Namespace,
				Verb:        verb,
				Group:       domainv1alpha1.GroupVersion.Group,
				Version:     domainv1alpha1.GroupVersion.Version,
				Resource:    domainv1alpha1.DomainsResource.Resource,
				Subresource: ref.Subresource,
				Name:        ref.Name,
			},
		},
	}
	if err := g.client.Create(ctx, review); err != nil {
		return false, fmt.Errorf("failed to create SubjectAccessReview: %w", err)
	}

	return review.Status.Allowed && !review.Status.Denied, nil
}
