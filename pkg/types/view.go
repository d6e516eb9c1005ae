package types

// ComponentView is the operator-facing summary of the selected services of a cluster.
type ComponentView struct {
	ClusterID int64 `json:"clusterId" yaml:"clusterId"`

	// Catalog version the view was assembled from
	Version string `json:"version" yaml:"version"`

	Services []ServiceSummary `json:"services" yaml:"services"`
}

// ServiceSummary is one service of a ComponentView.
type ServiceSummary struct {
	Name         string             `json:"name" yaml:"name"`
	Type         ServiceType        `json:"type" yaml:"type"`
	Priority     int                `json:"priority" yaml:"priority"`
	State        State              `json:"state" yaml:"state"`
	Dependencies []string           `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Components   []ComponentSummary `json:"components" yaml:"components"`
}

// ComponentSummary is one component of a ServiceSummary with its placements.
type ComponentSummary struct {
	Name     string          `json:"name" yaml:"name"`
	Priority int             `json:"priority" yaml:"priority"`
	Min      int             `json:"min" yaml:"min"`
	Max      int             `json:"max" yaml:"max"`
	Mutexes  []string        `json:"mutexes,omitempty" yaml:"mutexes,omitempty"`
	Nodes    []PlacementNode `json:"nodes" yaml:"nodes"`
}

// PlacementNode is a node hosting a component, with the instance state.
type PlacementNode struct {
	NodeID   int64  `json:"nodeId" yaml:"nodeId"`
	Hostname string `json:"hostname" yaml:"hostname"`
	IPv4     string `json:"ipv4" yaml:"ipv4"`
	RAM      int64  `json:"ram" yaml:"ram"`
	CPUCores int64  `json:"cpuCores" yaml:"cpuCores"`
	State    State  `json:"state" yaml:"state"`
}

// ServiceDependencies is the ordered dependency closure of a service.
type ServiceDependencies struct {
	ServiceName string            `json:"serviceName" yaml:"serviceName"`
	Cluster     ClusterMeta       `json:"cluster" yaml:"cluster"`
	Services    []ResolvedService `json:"services" yaml:"services"`
}

// ResolvedService is one member of a dependency closure, resolved against a cluster.
type ResolvedService struct {
	ServiceName string      `json:"serviceName" yaml:"serviceName"`
	Type        ServiceType `json:"type" yaml:"type"`
	Priority    int         `json:"priority" yaml:"priority"`
	Cluster     ClusterRef  `json:"cluster" yaml:"cluster"`
	State       State       `json:"state" yaml:"state"`
	ConfDirs    []ConfDir   `json:"confDirs,omitempty" yaml:"confDirs,omitempty"`
	Properties  []Property  `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Placements excluding REMOVED and UNSELECTED instances
	Components []ComponentPlacement `json:"components" yaml:"components"`

	// Set when the resolved state is REMOVED or UNSELECTED
	Inconsistent bool `json:"inconsistent,omitempty" yaml:"inconsistent,omitempty"`
}

// ComponentPlacement is one placed instance within a ResolvedService.
type ComponentPlacement struct {
	ComponentName string `json:"componentName" yaml:"componentName"`
	PlacementNode `yaml:",inline"`
}
