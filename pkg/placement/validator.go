package placement

import (
	"context"
	"sort"
	"strings"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// ClusterLookup fetches clusters by id.
type ClusterLookup interface {
	Get(ctx context.Context, id int64) (*types.Cluster, error)
}

// NodeLookup checks node existence and fetches active nodes of a cluster.
type NodeLookup interface {
	MissingIDs(ctx context.Context, clusterID int64, ids []int64) ([]int64, error)
	GetByIDs(ctx context.Context, clusterID int64, ids []int64) (map[int64]*types.Node, error)
}

// StateFunc reports the current state of a service in the target cluster.
type StateFunc func(service string) (types.State, error)

// Validator checks component selection batches before any state is touched.
type Validator struct {
	catalog  *catalog.Catalog
	clusters ClusterLookup
	nodes    NodeLookup
}

func NewValidator(cat *catalog.Catalog, clusters ClusterLookup, nodes NodeLookup) *Validator {
	return &Validator{catalog: cat, clusters: clusters, nodes: nodes}
}

// within returns a copy of v that looks clusters and nodes up through the
// given lookups.
func (v *Validator) within(clusters ClusterLookup, nodes NodeLookup) *Validator {
	return &Validator{catalog: v.catalog, clusters: clusters, nodes: nodes}
}

// Validate runs the batch checks in order and returns the first failure.
// It never writes.
func (v *Validator) Validate(ctx context.Context, req *types.ComponentSelectRequest, state StateFunc) error {
	if req == nil || len(req.Components) == 0 {
		return types.NewValidationError("no components in request")
	}

	for _, c := range req.Components {
		if !v.catalog.Owns(c.ServiceName, c.ComponentName) {
			return types.NewValidationErrorf("component %s does not belong to service %s", c.ComponentName, c.ServiceName).
				WithDetail("service", c.ServiceName).
				WithDetail("component", c.ComponentName)
		}
	}

	checked := make(map[string]bool)
	for _, c := range req.Components {
		if checked[c.ServiceName] {
			continue
		}
		checked[c.ServiceName] = true
		st, err := state(c.ServiceName)
		if err != nil {
			return err
		}
		if !st.IsSelected() {
			return types.NewValidationErrorf("service %s is %s, select the service first", c.ServiceName, st).
				WithDetail("service", c.ServiceName)
		}
	}

	seen := make(map[string]bool, len(req.Components))
	for _, c := range req.Components {
		if seen[c.ComponentName] {
			return types.NewValidationErrorf("component %s appears more than once", c.ComponentName).
				WithDetail("component", c.ComponentName)
		}
		seen[c.ComponentName] = true
	}

	for _, c := range req.Components {
		if _, ok := v.catalog.ComponentByName(c.ComponentName); !ok {
			return types.NewValidationErrorf("unknown component %s", c.ComponentName).
				WithDetail("component", c.ComponentName)
		}
	}

	if err := v.checkCluster(ctx, req.ClusterID); err != nil {
		return err
	}

	var all []int64
	for _, c := range req.Components {
		all = append(all, c.NodeIDs...)
	}
	if len(all) > 0 {
		missing, err := v.nodes.MissingIDs(ctx, req.ClusterID, all)
		if err != nil {
			return types.WrapStorageError(err, "failed to look up nodes")
		}
		if len(missing) > 0 {
			return types.NewValidationErrorf("nodes %s do not exist in cluster %d", joinIDs(missing), req.ClusterID).
				WithDetail("nodes", missing)
		}
	}

	for _, c := range req.Components {
		if !c.Intent.IsOperatorIntent() {
			return types.NewValidationErrorf("intent %q of %s is not allowed, use %s or %s",
				c.Intent, c.ComponentName, types.StateSelected, types.StateUnselected).
				WithDetail("component", c.ComponentName)
		}
	}

	for _, c := range req.Components {
		if len(c.NodeIDs) == 0 {
			return types.NewValidationErrorf("component %s has no nodes", c.ComponentName).
				WithDetail("component", c.ComponentName)
		}
		nodes := make(map[int64]bool, len(c.NodeIDs))
		for _, id := range c.NodeIDs {
			if nodes[id] {
				return types.NewValidationErrorf("node %d listed twice for component %s", id, c.ComponentName).
					WithDetail("component", c.ComponentName).
					WithDetail("node", id)
			}
			nodes[id] = true
		}
	}

	return nil
}

func (v *Validator) checkCluster(ctx context.Context, id int64) error {
	_, err := v.clusters.Get(ctx, id)
	if store.IsNotFoundError(err) {
		return types.NewValidationErrorf("cluster %d does not exist", id).WithDetail("cluster", id)
	}
	return types.WrapStorageError(err, "failed to look up cluster %d", id)
}

func joinIDs(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = idString(id)
	}
	return strings.Join(parts, ",")
}
