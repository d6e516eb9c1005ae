package types

// ResourceType is the type of a persisted record.
type ResourceType string

const (
	// ResourceTypeCluster is the resource type for clusters.
	ResourceTypeCluster ResourceType = "clusters"

	// ResourceTypeNode is the resource type for nodes.
	ResourceTypeNode ResourceType = "nodes"

	// ResourceTypeComponent is the resource type for component instances.
	ResourceTypeComponent ResourceType = "components"

	// ResourceTypeServiceSelection is the resource type for service-level operator selections.
	ResourceTypeServiceSelection ResourceType = "services"

	// ResourceTypeServiceProperty is the resource type for preconfigured service properties.
	ResourceTypeServiceProperty ResourceType = "properties"

	// ResourceTypeSequence is the resource type for id sequences.
	ResourceTypeSequence ResourceType = "sequences"
)

// SystemNamespace holds records that are not scoped to a cluster.
const SystemNamespace = "system"

// Unbounded is the maximum instance count meaning "no upper limit".
const Unbounded = -1
