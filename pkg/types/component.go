package types

import (
	"fmt"
	"time"
)

// InstanceIdentity is the composite identity of a component instance.
type InstanceIdentity struct {
	ClusterID     int64  `json:"clusterId" yaml:"clusterId"`
	NodeID        int64  `json:"nodeId" yaml:"nodeId"`
	ServiceName   string `json:"serviceName" yaml:"serviceName"`
	ComponentName string `json:"componentName" yaml:"componentName"`
}

// String implements fmt.Stringer.
func (id InstanceIdentity) String() string {
	return fmt.Sprintf("%d/%d/%s/%s", id.ClusterID, id.NodeID, id.ServiceName, id.ComponentName)
}

// ComponentInstance records the state of one component on one node of one cluster.
type ComponentInstance struct {
	// Record identifier; a new record is created when a REMOVED identity is re-selected
	ID string `json:"id" yaml:"id"`

	ClusterID     int64  `json:"clusterId" yaml:"clusterId"`
	NodeID        int64  `json:"nodeId" yaml:"nodeId"`
	ServiceName   string `json:"serviceName" yaml:"serviceName"`
	ComponentName string `json:"componentName" yaml:"componentName"`

	// Current lifecycle state
	State State `json:"state" yaml:"state"`

	// Copied from the catalog for ordering
	Priority int `json:"priority" yaml:"priority"`

	// Creation timestamp
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`

	// Last update timestamp
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Identity returns the composite identity of the instance.
func (c *ComponentInstance) Identity() InstanceIdentity {
	return InstanceIdentity{
		ClusterID:     c.ClusterID,
		NodeID:        c.NodeID,
		ServiceName:   c.ServiceName,
		ComponentName: c.ComponentName,
	}
}

// IsLive reports whether the instance is not a REMOVED history row.
func (c *ComponentInstance) IsLive() bool {
	return c.State != StateRemoved
}

// ServiceSelection is the operator's recorded choice for a service in a cluster.
type ServiceSelection struct {
	ClusterID   int64     `json:"clusterId" yaml:"clusterId"`
	ServiceName string    `json:"serviceName" yaml:"serviceName"`
	State       State     `json:"state" yaml:"state"`
	Priority    int       `json:"priority" yaml:"priority"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}
