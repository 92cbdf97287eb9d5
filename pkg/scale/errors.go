package scale

import (
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
)

// clustersResource names a cluster inside a Domain in NotFound errors.
var clustersResource = schema.GroupResource{
	Group:    domainv1alpha1.GroupVersion.Group,
	Resource: "clusters",
}

// retryAfterSeconds is the hint attached to Timeout errors.
const retryAfterSeconds = 1

func invalidArgument(format string, args ...any) error {
	return apierrors.NewBadRequest(fmt.Sprintf(format, args...))
}

func unauthenticated(reason string) error {
	return apierrors.NewUnauthorized(reason)
}

func forbidden(ref ResourceRef, id *Identity, verb string) error {
	return apierrors.NewForbidden(
		domainv1alpha1.DomainsResource,
		ref.Name,
		fmt.Errorf("user %q cannot %s domains/%s", id.Username, verb, ref.Subresource),
	)
}

func domainNotFound(domainUID string) error {
	return apierrors.NewNotFound(domainv1alpha1.DomainsResource, domainUID)
}

func clusterNotFound(clusterName string) error {
	return apierrors.NewNotFound(clustersResource, clusterName)
}

func topologyTimeout(key DomainKey, timeout time.Duration) error {
	return apierrors.NewTimeoutError(
		fmt.Sprintf("topology of domain %s was not retrieved within %s", key.UID, timeout),
		retryAfterSeconds,
	)
}

// IsRetriable reports whether err is transient: the same request may succeed
// when reissued. Validation, authorization and lookup failures are permanent.
func IsRetriable(err error) bool {
	return apierrors.IsConflict(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTooManyRequests(err)
}
