package scale

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
)

// ResourceStore reads and writes Domains.
type ResourceStore interface {
	// List returns every Domain in namespace.
	List(ctx context.Context, namespace string) ([]domainv1alpha1.Domain, error)

	// Replace writes domain over namespace/name. The write is rejected with a
	// Conflict error when domain's resourceVersion is no longer current.
	Replace(
		ctx context.Context,
		namespace, name string,
		domain *domainv1alpha1.Domain,
	) (*domainv1alpha1.Domain, error)
}

// KubeStore is a ResourceStore over the Kubernetes API.
type KubeStore struct {
	client client.Client
}

var _ ResourceStore = &KubeStore{}

// NewKubeStore creates a KubeStore using c.
func NewKubeStore(c client.Client) *KubeStore {
	return &KubeStore{client: c}
}

func (s *KubeStore) List(ctx context.Context, namespace string) ([]domainv1alpha1.Domain, error) {
	domains := &domainv1alpha1.DomainList{}
	if err := s.client.List(ctx, domains, client.InNamespace(namespace)); err != nil {
		return nil, fmt.Errorf("failed to list domains in %q: %w", namespace, err)
	}
	return domains.Items, nil
}

func (s *KubeStore) Replace(
	ctx context.Context,
	namespace, name string,
	domain *domainv1alpha1.Domain,
) (*domainv1alpha1.Domain, error) {
	if domain.Namespace != namespace || domain.Name != name {
		return nil, invalidArgument(
			"domain %s/%s does not match replace target %s/%s",
			domain.Namespace, domain.Name, namespace, name,
		)
	}

	updated := domain.DeepCopy()
	if err := s.client.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to replace domain %s/%s: %w", namespace, name, err)
	}
	return updated, nil
}
