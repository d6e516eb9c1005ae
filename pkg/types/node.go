package types

import (
	"fmt"
	"net"
	"time"
)

// NodeState represents the lifecycle of a node record.
type NodeState string

const (
	// NodeStateActive indicates the node can host component instances.
	NodeStateActive NodeState = "ACTIVE"

	// NodeStateRemoved indicates the node left the cluster.
	NodeStateRemoved NodeState = "REMOVED"
)

// Node represents a machine in a cluster.
type Node struct {
	// Unique identifier for the node
	ID int64 `json:"id" yaml:"id"`

	// Cluster the node belongs to
	ClusterID int64 `json:"clusterId" yaml:"clusterId"`

	// Hostname of the node
	Hostname string `json:"hostname" yaml:"hostname"`

	// IPv4 address of the node
	IPv4 string `json:"ipv4" yaml:"ipv4"`

	// State of the node record
	State NodeState `json:"state" yaml:"state"`

	// RAM in megabytes
	RAM int64 `json:"ram" yaml:"ram"`

	// Number of CPU cores
	CPUCores int64 `json:"cpuCores" yaml:"cpuCores"`

	// Creation timestamp
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`

	// Last update timestamp
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Validate validates the node configuration.
func (n *Node) Validate() error {
	if n.ClusterID == 0 {
		return NewValidationError("node cluster ID is required")
	}

	if n.Hostname == "" {
		return NewValidationError("node hostname is required")
	}

	ip := net.ParseIP(n.IPv4)
	if ip == nil || ip.To4() == nil {
		return NewValidationError(fmt.Sprintf("node %s has an invalid IPv4 address %q", n.Hostname, n.IPv4))
	}

	if n.RAM < 0 || n.CPUCores < 0 {
		return NewValidationError(fmt.Sprintf("node %s has negative resource hints", n.Hostname))
	}

	return nil
}

// IsActive reports whether the node can host instances.
func (n *Node) IsActive() bool {
	return n.State != NodeStateRemoved
}
