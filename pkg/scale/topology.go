package scale

import (
	"context"
	"sync"
	"time"

	"github.com/numtide/domain-operator/pkg/monitoring"
)

// DefaultTopologyTimeout bounds a topology retrieval when the caller does not
// supply a deadline.
const DefaultTopologyTimeout = 30 * time.Second

// DomainKey identifies the Domain whose topology is retrieved.
type DomainKey struct {
	Namespace string
	UID       string
}

// ClusterTopology is the set of members configured for one cluster, as known
// to the running domain.
type ClusterTopology struct {
	Name    string
	Members []string
}

// Size returns the number of configured members.
func (c *ClusterTopology) Size() int {
	return len(c.Members)
}

// DomainTopology is the live topology of a Domain.
type DomainTopology struct {
	DomainName  string
	AdminServer string
	Clusters    []ClusterTopology
}

// Cluster returns the topology of the named cluster.
func (t *DomainTopology) Cluster(name string) (*ClusterTopology, bool) {
	for i := range t.Clusters {
		if t.Clusters[i].Name == name {
			return &t.Clusters[i], true
		}
	}
	return nil, false
}

// TopologySource performs one blocking topology retrieval. Implementations
// must return promptly once ctx is cancelled.
type TopologySource interface {
	DomainTopology(ctx context.Context, key DomainKey) (*DomainTopology, error)
}

// TopologyFetcher retrieves a Domain topology within a deadline.
type TopologyFetcher interface {
	Fetch(ctx context.Context, key DomainKey, timeout time.Duration) (*DomainTopology, error)
}

// TopologyRetriever runs TopologySource retrievals asynchronously. Every call
// starts an independent retrieval; nothing is cached between calls.
type TopologyRetriever struct {
	source TopologySource
}

var _ TopologyFetcher = &TopologyRetriever{}

// NewTopologyRetriever creates a TopologyRetriever over source.
func NewTopologyRetriever(source TopologySource) *TopologyRetriever {
	return &TopologyRetriever{source: source}
}

// TopologyFuture is the handle of an in-flight retrieval.
type TopologyFuture struct {
	key    DomainKey
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	topology *DomainTopology
	err      error
}

// Submit starts a retrieval on its own goroutine. The caller must Cancel the
// returned future once it no longer needs the result.
func (r *TopologyRetriever) Submit(ctx context.Context, key DomainKey) *TopologyFuture {
	ctx, cancel := context.WithCancel(ctx)
	f := &TopologyFuture{
		key:    key,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		f.topology, f.err = r.source.DomainTopology(ctx, key)
	}()

	return f
}

// Fetch retrieves the topology of key, waiting at most timeout. The retrieval
// is cancelled on every return path.
func (r *TopologyRetriever) Fetch(
	ctx context.Context,
	key DomainKey,
	timeout time.Duration,
) (*DomainTopology, error) {
	ctx, span := monitoring.StartChildSpan(ctx, "FetchTopology")
	defer span.End()

	start := time.Now()
	f := r.Submit(ctx, key)
	defer f.Cancel()

	topology, err := f.Wait(ctx, timeout)
	monitoring.RecordTopologyFetch(err, time.Since(start))
	monitoring.RecordSpanError(span, err)
	return topology, err
}

// Wait blocks until the retrieval completes, timeout elapses, or ctx is done.
// Expiry of either deadline cancels the retrieval and fails with a Timeout
// error. A non-positive timeout means DefaultTopologyTimeout.
func (f *TopologyFuture) Wait(ctx context.Context, timeout time.Duration) (*DomainTopology, error) {
	if timeout <= 0 {
		timeout = DefaultTopologyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		if f.err != nil && f.ctx.Err() != nil {
			// The source gave up because the retrieval was cancelled.
			return nil, topologyTimeout(f.key, timeout)
		}
		return f.topology, f.err
	case <-timer.C:
	case <-ctx.Done():
	}

	f.Cancel()
	return nil, topologyTimeout(f.key, timeout)
}

// Done is closed once the retrieval goroutine has returned.
func (f *TopologyFuture) Done() <-chan struct{} {
	return f.done
}

// Cancel aborts the retrieval. It is safe to call more than once.
func (f *TopologyFuture) Cancel() {
	f.cancel()
}

// StaticSource is a TopologySource serving fixed topologies keyed by domain
// UID. It backs tests and single-domain setups without an introspector.
type StaticSource struct {
	mu         sync.RWMutex
	topologies map[string]*DomainTopology
}

var _ TopologySource = &StaticSource{}

// NewStaticSource creates an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{topologies: map[string]*DomainTopology{}}
}

// AddCluster registers members for a cluster of the given domain.
func (s *StaticSource) AddCluster(domainUID, cluster string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topologies[domainUID]
	if !ok {
		t = &DomainTopology{DomainName: domainUID}
		s.topologies[domainUID] = t
	}
	if c, ok := t.Cluster(cluster); ok {
		c.Members = append(c.Members, members...)
		return
	}
	t.Clusters = append(t.Clusters, ClusterTopology{Name: cluster, Members: members})
}

func (s *StaticSource) DomainTopology(ctx context.Context, key DomainKey) (*DomainTopology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topologies[key.UID]
	if !ok {
		return nil, domainNotFound(key.UID)
	}
	out := &DomainTopology{DomainName: t.DomainName, AdminServer: t.AdminServer}
	for _, c := range t.Clusters {
		out.Clusters = append(out.Clusters, ClusterTopology{
			Name:    c.Name,
			Members: append([]string(nil), c.Members...),
		})
	}
	return out, nil
}
