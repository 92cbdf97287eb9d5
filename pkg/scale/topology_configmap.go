package scale

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// TopologyConfigMapSuffix is appended to the domain UID to name the
	// ConfigMap written by the domain introspector.
	TopologyConfigMapSuffix = "-topology"

	// TopologyKey is the ConfigMap data key holding the topology document.
	TopologyKey = "topology.yaml"
)

// TopologyConfigMapName returns the name of the topology ConfigMap of a domain.
func TopologyConfigMapName(domainUID string) string {
	return domainUID + TopologyConfigMapSuffix
}

// topologyDocument mirrors the introspector's topology.yaml.
type topologyDocument struct {
	Domain struct {
		Name               string `yaml:"name"`
		AdminServerName    string `yaml:"adminServerName"`
		ConfiguredClusters []struct {
			Name    string `yaml:"name"`
			Servers []struct {
				Name string `yaml:"name"`
			} `yaml:"servers"`
		} `yaml:"configuredClusters"`
	} `yaml:"domain"`
}

// ConfigMapSource reads Domain topologies from introspector ConfigMaps.
type ConfigMapSource struct {
	client client.Reader
}

var _ TopologySource = &ConfigMapSource{}

// NewConfigMapSource creates a ConfigMapSource reading through c.
func NewConfigMapSource(c client.Reader) *ConfigMapSource {
	return &ConfigMapSource{client: c}
}

func (s *ConfigMapSource) DomainTopology(ctx context.Context, key DomainKey) (*DomainTopology, error) {
	cm := &corev1.ConfigMap{}
	name := TopologyConfigMapName(key.UID)
	if err := s.client.Get(ctx, client.ObjectKey{Namespace: key.Namespace, Name: name}, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apierrors.NewNotFound(corev1.Resource("configmaps"), name)
		}
		return nil, fmt.Errorf("failed to get topology ConfigMap %s/%s: %w", key.Namespace, name, err)
	}

	raw, ok := cm.Data[TopologyKey]
	if !ok {
		return nil, apierrors.NewNotFound(corev1.Resource("configmaps"), name+"/"+TopologyKey)
	}

	return ParseTopology([]byte(raw))
}

// ParseTopology decodes a topology.yaml document. Member names keep their
// document order; duplicates are dropped.
func ParseTopology(data []byte) (*DomainTopology, error) {
	doc := &topologyDocument{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}

	topology := &DomainTopology{
		DomainName:  doc.Domain.Name,
		AdminServer: doc.Domain.AdminServerName,
	}
	for _, c := range doc.Domain.ConfiguredClusters {
		if c.Name == "" {
			return nil, fmt.Errorf("failed to parse topology: cluster without a name")
		}
		cluster := ClusterTopology{Name: c.Name}
		for _, s := range c.Servers {
			if s.Name == "" || slices.Contains(cluster.Members, s.Name) {
				continue
			}
			cluster.Members = append(cluster.Members, s.Name)
		}
		topology.Clusters = append(topology.Clusters, cluster)
	}
	return topology, nil
}
