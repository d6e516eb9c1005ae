package placement

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

// ConfigSource supplies configuration directories and preconfigured
// properties of services.
type ConfigSource interface {
	ConfDirs(service string) []types.ConfDir
	Properties(ctx context.Context, clusterID int64, service string) ([]types.Property, error)
}

// Resolver computes the ordered dependency closure of a service.
type Resolver struct {
	catalog *catalog.Catalog
	set     *repos.Set
	config  ConfigSource
	logger  log.Logger

	// Upper bound of services fetched concurrently
	parallelism int
}

func NewResolver(cat *catalog.Catalog, set *repos.Set, config ConfigSource, logger log.Logger) *Resolver {
	return &Resolver{
		catalog:     cat,
		set:         set,
		config:      config,
		logger:      log.OrDefault(logger).WithComponent("resolver"),
		parallelism: 4,
	}
}

// Order returns {service} and its dependencies sorted by priority, then name.
func (r *Resolver) Order(service string) ([]*types.ServiceDefinition, error) {
	target, ok := r.catalog.ServiceByName(service)
	if !ok {
		return nil, types.NewNotFoundError("service", service)
	}

	seen := map[string]bool{target.Name: true}
	out := []*types.ServiceDefinition{target}
	for _, dep := range target.Dependencies {
		if seen[dep] {
			continue
		}
		seen[dep] = true
		def, ok := r.catalog.ServiceByName(dep)
		if !ok {
			return nil, types.NewConsistencyError("service " + service + " depends on unknown service " + dep)
		}
		out = append(out, def)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ResolutionCluster picks the cluster a service is resolved against. A
// STORAGE service seen from a COMPUTE cluster belongs to the relative cluster.
func ResolutionCluster(meta types.ClusterMeta, svc *types.ServiceDefinition) (types.ClusterRef, error) {
	if meta.Current.Type == types.ClusterTypeCompute && svc.Type == types.ServiceTypeStorage {
		if meta.Relative == nil {
			return types.ClusterRef{}, types.NewValidationErrorf(
				"cluster %s has no relative storage cluster for service %s", meta.Current.Name, svc.Name).
				WithDetail("service", svc.Name)
		}
		return *meta.Relative, nil
	}
	return meta.Current, nil
}

// Resolve fetches the state, configuration and placements of every service
// in the closure of service. Services resolving to REMOVED or UNSELECTED, or
// to no cluster at all, are reported with Inconsistent set.
func (r *Resolver) Resolve(ctx context.Context, meta types.ClusterMeta, service string) (*types.ServiceDependencies, error) {
	order, err := r.Order(service)
	if err != nil {
		return nil, err
	}

	refs := make([]types.ClusterRef, len(order))
	unresolved := make([]bool, len(order))
	for i, svc := range order {
		if refs[i], err = ResolutionCluster(meta, svc); err != nil {
			unresolved[i] = true
			r.logger.Error("Dependency has no resolution cluster",
				log.Cluster(meta.Current.ID),
				log.Str("service", svc.Name),
				log.Err(err))
		}
	}

	results := make([]types.ResolvedService, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, svc := range order {
		i, svc := i, svc
		if unresolved[i] {
			results[i] = types.ResolvedService{
				ServiceName:  svc.Name,
				Type:         svc.Type,
				Priority:     svc.Priority,
				State:        types.StateUnselected,
				ConfDirs:     r.config.ConfDirs(svc.Name),
				Inconsistent: true,
			}
			continue
		}
		g.Go(func() error {
			res, err := r.resolveOne(gctx, refs[i], svc)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.ServiceDependencies{
		ServiceName: service,
		Cluster:     meta,
		Services:    results,
	}, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ref types.ClusterRef, svc *types.ServiceDefinition) (*types.ResolvedService, error) {
	snap := &storeSnapshot{ctx: ctx, set: r.set}
	state, _, err := serviceState(snap, ref.ID, svc.Name)
	if err != nil {
		return nil, err
	}

	props, err := r.config.Properties(ctx, ref.ID, svc.Name)
	if err != nil {
		return nil, err
	}

	placements, err := r.placements(ctx, ref.ID, svc.Name)
	if err != nil {
		return nil, err
	}

	res := &types.ResolvedService{
		ServiceName: svc.Name,
		Type:        svc.Type,
		Priority:    svc.Priority,
		Cluster:     ref,
		State:       state,
		ConfDirs:    r.config.ConfDirs(svc.Name),
		Properties:  props,
		Components:  placements,
	}

	if state == types.StateRemoved || state == types.StateUnselected {
		res.Inconsistent = true
		r.logger.Error("Dependency resolved to an inactive service",
			log.Cluster(ref.ID),
			log.Str("service", svc.Name),
			log.Str("state", string(state)))
	}
	return res, nil
}

// placements lists placed instances of a service joined with their nodes,
// ordered by component priority, then hostname.
func (r *Resolver) placements(ctx context.Context, clusterID int64, service string) ([]types.ComponentPlacement, error) {
	rows, err := r.set.Components.List(ctx, repos.ComponentQuery{
		ClusterID:     clusterID,
		ServiceName:   service,
		ExcludeStates: []types.State{types.StateRemoved, types.StateUnselected},
	})
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to list instances of %s", service)
	}

	nodes, err := joinNodes(ctx, r.set.Nodes, r.logger, clusterID, rows)
	if err != nil {
		return nil, err
	}

	out := make([]types.ComponentPlacement, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.ComponentPlacement{
			ComponentName: row.ComponentName,
			PlacementNode: placementNode(nodes[row.NodeID], row.State),
		})
	}

	priority := func(name string) int {
		if def, ok := r.catalog.ComponentByName(name); ok {
			return def.Priority
		}
		return 0
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].ComponentName), priority(out[j].ComponentName)
		if pi != pj {
			return pi < pj
		}
		if out[i].ComponentName != out[j].ComponentName {
			return out[i].ComponentName < out[j].ComponentName
		}
		return out[i].Hostname < out[j].Hostname
	})
	return out, nil
}

// joinNodes fetches the nodes referenced by rows. A row pointing at a node
// that is missing or removed is a consistency failure.
func joinNodes(ctx context.Context, nodes NodeLookup, logger log.Logger, clusterID int64, rows []*types.ComponentInstance) (map[int64]*types.Node, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.NodeID)
	}
	found, err := nodes.GetByIDs(ctx, clusterID, ids)
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to look up nodes of cluster %d", clusterID)
	}
	for _, row := range rows {
		if _, ok := found[row.NodeID]; ok {
			continue
		}
		err := types.NewConsistencyError("component instance references unknown node").
			WithDetail("cluster", clusterID).
			WithDetail("node", row.NodeID).
			WithDetail("component", row.ComponentName).
			WithDetail("instance", row.ID)
		logger.Error("Component instance references unknown node",
			log.Cluster(clusterID),
			log.Int64("node_id", row.NodeID),
			log.Str("component", row.ComponentName),
			log.Str("instance", row.ID))
		return nil, err
	}
	return found, nil
}

func placementNode(n *types.Node, state types.State) types.PlacementNode {
	return types.PlacementNode{
		NodeID:   n.ID,
		Hostname: n.Hostname,
		IPv4:     n.IPv4,
		RAM:      n.RAM,
		CPUCores: n.CPUCores,
		State:    state,
	}
}
