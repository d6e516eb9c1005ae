package repos

import "github.com/rzbill/placer/pkg/store"

// Set bundles every repository over one core store.
type Set struct {
	Core       store.Store
	Clusters   *ClusterRepo
	Nodes      *NodeRepo
	Components *ComponentRepo
	Selections *SelectionRepo
	Properties *PropertyRepo
}

// New builds the repository set for core.
func New(core store.Store) *Set {
	return &Set{
		Core:       core,
		Clusters:   NewClusterRepo(core),
		Nodes:      NewNodeRepo(core),
		Components: NewComponentRepo(core),
		Selections: NewSelectionRepo(core),
		Properties: NewPropertyRepo(core),
	}
}
