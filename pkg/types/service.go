package types

import (
	"fmt"
	"strings"
)

// ServiceType decides which cluster owns a service.
type ServiceType string

const (
	// ServiceTypeStorage services live on storage clusters.
	ServiceTypeStorage ServiceType = "STORAGE"

	// ServiceTypeCompute services live on compute clusters.
	ServiceTypeCompute ServiceType = "COMPUTE"

	// ServiceTypeBase services are infrastructure shared by both.
	ServiceTypeBase ServiceType = "BASE"
)

// ParseServiceType parses a service type, case-insensitively.
func ParseServiceType(s string) (ServiceType, error) {
	switch ServiceType(strings.ToUpper(strings.TrimSpace(s))) {
	case ServiceTypeStorage:
		return ServiceTypeStorage, nil
	case ServiceTypeCompute:
		return ServiceTypeCompute, nil
	case ServiceTypeBase:
		return ServiceTypeBase, nil
	}
	return "", fmt.Errorf("unknown service type %q", s)
}

// ServiceDefinition is the catalog entry of a service.
type ServiceDefinition struct {
	// Name of the service, e.g. HDFS
	Name string `json:"name" yaml:"name"`

	// Type of the service
	Type ServiceType `json:"type" yaml:"type"`

	// Deployment ordering weight, lower deploys first
	Priority int `json:"priority" yaml:"priority"`

	// Human-readable description
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Names of the services this one depends on, in declaration order
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Configuration directories shipped with the service
	ConfDirs []ConfDir `json:"confDirs,omitempty" yaml:"confDirs,omitempty"`

	// Default preconfigured properties
	Properties []Property `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Names of the components owned by the service, in priority order
	Components []string `json:"components,omitempty" yaml:"components,omitempty"`
}

// ComponentDefinition is the catalog entry of a component.
type ComponentDefinition struct {
	// Name of the component, unique across the catalog
	Name string `json:"name" yaml:"name"`

	// Owning service
	ServiceName string `json:"serviceName" yaml:"serviceName"`

	// Ordering weight within the service
	Priority int `json:"priority" yaml:"priority"`

	// Minimum number of instances across a cluster
	Min int `json:"min" yaml:"min"`

	// Maximum number of instances across a cluster, Unbounded for no limit
	Max int `json:"max" yaml:"max"`

	// Components that must never share a node with this one
	Mutexes []string `json:"mutexes,omitempty" yaml:"mutexes,omitempty"`
}

// IsUnbounded reports whether the component has no upper instance limit.
func (c *ComponentDefinition) IsUnbounded() bool {
	return c.Max == Unbounded
}

// Excludes reports whether the component names other in its mutex set.
func (c *ComponentDefinition) Excludes(other string) bool {
	for _, m := range c.Mutexes {
		if m == other {
			return true
		}
	}
	return false
}

// ConfDir describes a configuration directory of a service.
type ConfDir struct {
	// Directory name relative to the service package
	Dir string `json:"dir" yaml:"dir"`

	// Files templated in the directory
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Property is a preconfigured key/value pair of a service.
type Property struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`

	// File the property is rendered into, if any
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ServicePropertySet is the persisted set of operator overrides for a service.
type ServicePropertySet struct {
	ClusterID   int64      `json:"clusterId" yaml:"clusterId"`
	ServiceName string     `json:"serviceName" yaml:"serviceName"`
	Properties  []Property `json:"properties" yaml:"properties"`
}
