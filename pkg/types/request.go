package types

// ComponentSelection is one entry of a component selection batch.
type ComponentSelection struct {
	ServiceName   string  `json:"serviceName" yaml:"serviceName"`
	ComponentName string  `json:"componentName" yaml:"componentName"`
	Intent        State   `json:"intent" yaml:"intent"`
	NodeIDs       []int64 `json:"nodeIds" yaml:"nodeIds"`
}

// ComponentSelectRequest asks to place or withdraw components on nodes of a cluster.
type ComponentSelectRequest struct {
	ClusterID  int64                `json:"clusterId" yaml:"clusterId"`
	Components []ComponentSelection `json:"components" yaml:"components"`
}

// ServiceIntent is one entry of a service selection batch.
type ServiceIntent struct {
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Intent      State  `json:"intent" yaml:"intent"`
}

// ServiceSelectRequest asks to opt services of a cluster in or out.
type ServiceSelectRequest struct {
	ClusterID int64           `json:"clusterId" yaml:"clusterId"`
	Services  []ServiceIntent `json:"services" yaml:"services"`
}

// SelectResult reports what a committed batch changed.
type SelectResult struct {
	ClusterID int64 `json:"clusterId" yaml:"clusterId"`

	// Rows written, in final state
	Written []*ComponentInstance `json:"written,omitempty" yaml:"written,omitempty"`

	// Number of UNSELECTED rows deleted
	Pruned int `json:"pruned" yaml:"pruned"`
}
