// Package types defines the core data structures for the placer control plane.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ClusterType distinguishes compute clusters from storage clusters.
type ClusterType string

const (
	// ClusterTypeCompute runs compute services and borrows storage services
	// from its relative storage cluster.
	ClusterTypeCompute ClusterType = "COMPUTE"

	// ClusterTypeStorage owns storage services.
	ClusterTypeStorage ClusterType = "STORAGE"

	// ClusterTypeMixed owns every service type locally.
	ClusterTypeMixed ClusterType = "MIXED"
)

// ParseClusterType parses a cluster type, case-insensitively.
func ParseClusterType(s string) (ClusterType, error) {
	switch ClusterType(strings.ToUpper(strings.TrimSpace(s))) {
	case ClusterTypeCompute:
		return ClusterTypeCompute, nil
	case ClusterTypeStorage:
		return ClusterTypeStorage, nil
	case ClusterTypeMixed:
		return ClusterTypeMixed, nil
	}
	return "", fmt.Errorf("unknown cluster type %q", s)
}

// Cluster is a named group of nodes.
type Cluster struct {
	// Unique identifier for the cluster
	ID int64 `json:"id" yaml:"id"`

	// Human-readable name for the cluster
	Name string `json:"name" yaml:"name"`

	// Type of the cluster
	Type ClusterType `json:"type" yaml:"type"`

	// RelativeClusterID links a compute cluster to the storage cluster that
	// serves its storage services. Zero when unset.
	RelativeClusterID int64 `json:"relativeClusterId,omitempty" yaml:"relativeClusterId,omitempty"`

	// Creation timestamp
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`

	// Last update timestamp
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Validate validates the cluster configuration.
func (c *Cluster) Validate() error {
	if c.Name == "" {
		return NewValidationError("cluster name is required")
	}

	if _, err := ParseClusterType(string(c.Type)); err != nil {
		return NewValidationError(err.Error())
	}

	if c.RelativeClusterID != 0 && c.Type != ClusterTypeCompute {
		return NewValidationError(fmt.Sprintf("only %s clusters may reference a relative cluster", ClusterTypeCompute))
	}

	if c.RelativeClusterID != 0 && c.RelativeClusterID == c.ID {
		return NewValidationError("a cluster cannot be its own relative cluster")
	}

	return nil
}

// ClusterRef identifies the cluster a service resolves against.
type ClusterRef struct {
	ID   int64       `json:"id" yaml:"id"`
	Name string      `json:"name" yaml:"name"`
	Type ClusterType `json:"type" yaml:"type"`
}

// ClusterMeta carries the current cluster and, optionally, its relative
// (linked) cluster.
type ClusterMeta struct {
	Current  ClusterRef  `json:"current" yaml:"current"`
	Relative *ClusterRef `json:"relative,omitempty" yaml:"relative,omitempty"`
}

// RefOf returns the ClusterRef of a cluster.
func RefOf(c *Cluster) ClusterRef {
	return ClusterRef{ID: c.ID, Name: c.Name, Type: c.Type}
}
