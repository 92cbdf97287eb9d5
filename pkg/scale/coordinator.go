package scale

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/log"

	domainv1alpha1 "github.com/numtide/domain-operator/api/v1alpha1"
	"github.com/numtide/domain-operator/pkg/monitoring"
)

const (
	// VerbScale is the access-review verb of a scale request.
	VerbScale = "update"

	// SubresourceScale is the Domain subresource a scale request acts on.
	SubresourceScale = "scale"

	// maxConcurrentLists bounds the namespace fan-out of a lookup.
	maxConcurrentLists = 8
)

// ScaleRequest asks for one cluster of a Domain to run Replicas members.
type ScaleRequest struct {
	// Token is the caller's bearer credential.
	Token       string
	DomainUID   string
	ClusterName string
	Replicas    int32
}

// ScaleResult describes the outcome of a successful ScaleCluster call.
type ScaleResult struct {
	Namespace   string
	Name        string
	DomainUID   string
	ClusterName string
	// Replicas is the effective replica count after the request.
	Replicas int32
	// Updated is false when the request was a no-op.
	Updated bool
}

// Options configures a Coordinator.
type Options struct {
	// Namespaces are searched for Domains, in order.
	Namespaces []string
	// TopologyTimeout bounds each topology retrieval.
	TopologyTimeout time.Duration
	// Recorder receives events for Domains that were scaled. Optional.
	Recorder record.EventRecorder
}

// Coordinator serves cluster scale requests.
type Coordinator struct {
	gate     AuthGate
	store    ResourceStore
	topology TopologyFetcher
	opts     Options
}

// NewCoordinator creates a Coordinator from its collaborators.
func NewCoordinator(gate AuthGate, store ResourceStore, topology TopologyFetcher, opts Options) *Coordinator {
	if opts.TopologyTimeout <= 0 {
		opts.TopologyTimeout = DefaultTopologyTimeout
	}
	return &Coordinator{
		gate:     gate,
		store:    store,
		topology: topology,
		opts:     opts,
	}
}

// ScaleCluster sets the replica count of one cluster of a Domain. At most one
// read pass and one write are made per call; Conflict and Timeout errors are
// returned to the caller rather than retried.
func (c *Coordinator) ScaleCluster(ctx context.Context, req ScaleRequest) (*ScaleResult, error) {
	ctx, span := monitoring.StartScaleSpan(ctx, req.DomainUID, req.ClusterName)
	defer span.End()

	start := time.Now()
	result, err := c.scaleCluster(ctx, req)

	outcome := monitoring.ResultError
	switch {
	case err != nil:
		monitoring.RecordSpanError(span, err)
	case result.Updated:
		outcome = monitoring.ResultScaled
	default:
		outcome = monitoring.ResultUnchanged
	}
	monitoring.RecordScaleRequest(outcome, time.Since(start))

	return result, err
}

func (c *Coordinator) scaleCluster(ctx context.Context, req ScaleRequest) (*ScaleResult, error) {
	logger := log.FromContext(ctx).WithValues("domainUID", req.DomainUID, "cluster", req.ClusterName)

	// 1. Validation
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Authentication and authorization, before any state is read
	if err := c.authorize(ctx, req); err != nil {
		logger.V(1).Info("Scale request rejected", "reason", err.Error())
		return nil, err
	}

	// 3. Locate the Domain
	domain, err := c.findDomain(ctx, req.DomainUID)
	if err != nil {
		return nil, err
	}
	logger = logger.WithValues("domain", domain.Name, "namespace", domain.Namespace)

	// 4. Check the request against the live topology
	topology, err := c.topology.Fetch(
		ctx,
		DomainKey{Namespace: domain.Namespace, UID: req.DomainUID},
		c.opts.TopologyTimeout,
	)
	if err != nil {
		logger.Error(err, "Failed to retrieve topology")
		return nil, err
	}
	cluster, ok := topology.Cluster(req.ClusterName)
	if !ok {
		return nil, clusterNotFound(req.ClusterName)
	}
	if int(req.Replicas) > cluster.Size() {
		return nil, invalidArgument(
			"requested scaling count of %d is greater than the %d members configured for cluster %s",
			req.Replicas, cluster.Size(), req.ClusterName,
		)
	}

	result := &ScaleResult{
		Namespace:   domain.Namespace,
		Name:        domain.Name,
		DomainUID:   req.DomainUID,
		ClusterName: req.ClusterName,
		Replicas:    req.Replicas,
	}

	// 5-6. No-op when the effective count already matches
	current := domain.ReplicaCount(req.ClusterName)
	if current == req.Replicas {
		logger.V(1).Info("Cluster already at requested size", "replicas", current)
		return result, nil
	}

	// 7. Single optimistic-concurrency write of the override
	updated := domain.DeepCopy()
	updated.SetReplicaCount(req.ClusterName, req.Replicas)
	written, err := c.store.Replace(ctx, domain.Namespace, domain.Name, updated)
	if err != nil {
		logger.Error(err, "Failed to replace domain")
		return nil, err
	}

	logger.Info("Scaled cluster", "from", current, "to", req.Replicas)
	if c.opts.Recorder != nil && written != nil {
		c.opts.Recorder.Eventf(written, corev1.EventTypeNormal, "Scaled",
			"Cluster %s scaled from %d to %d", req.ClusterName, current, req.Replicas)
	}
	result.Updated = true
	return result, nil
}

func validate(req ScaleRequest) error {
	if req.DomainUID == "" {
		return invalidArgument("domain UID must not be empty")
	}
	if req.ClusterName == "" {
		return invalidArgument("cluster name must not be empty")
	}
	if req.Replicas < 0 {
		return invalidArgument("requested replica count %d must not be negative", req.Replicas)
	}
	return nil
}

func (c *Coordinator) authorize(ctx context.Context, req ScaleRequest) error {
	id, err := c.gate.Authenticate(ctx, req.Token)
	if err != nil {
		return err
	}

	ref := ResourceRef{Namespace: c.scopeNamespace(), Subresource: SubresourceScale}
	allowed, err := c.gate.Authorize(ctx, id, VerbScale, ref)
	if err != nil {
		return err
	}
	if !allowed {
		return forbidden(ref, id, VerbScale)
	}
	return nil
}

// scopeNamespace is the namespace of the access check: the watched namespace
// when there is exactly one, otherwise cluster scope.
func (c *Coordinator) scopeNamespace() string {
	if len(c.opts.Namespaces) == 1 {
		return c.opts.Namespaces[0]
	}
	return ""
}

// findDomain lists all watched namespaces concurrently and returns the first
// Domain, in namespace order, whose spec.domainUID matches.
func (c *Coordinator) findDomain(ctx context.Context, domainUID string) (*domainv1alpha1.Domain, error) {
	results := make([][]domainv1alpha1.Domain, len(c.opts.Namespaces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLists)
	for i, ns := range c.opts.Namespaces {
		g.Go(func() error {
			domains, err := c.store.List(gctx, ns)
			if err != nil {
				return err
			}
			results[i] = domains
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to locate domain %s: %w", domainUID, err)
	}

	for _, domains := range results {
		for i := range domains {
			if domains[i].Spec.DomainUID == domainUID {
				return &domains[i], nil
			}
		}
	}
	return nil, domainNotFound(domainUID)
}
