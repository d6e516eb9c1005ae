package placement

import (
	"context"
	"sort"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

// Summarizer assembles the component view of a cluster.
type Summarizer struct {
	catalog *catalog.Catalog
	set     *repos.Set
	logger  log.Logger
}

func NewSummarizer(cat *catalog.Catalog, set *repos.Set, logger log.Logger) *Summarizer {
	return &Summarizer{catalog: cat, set: set, logger: log.OrDefault(logger).WithComponent("summary")}
}

// Summarize lists the selected services of a cluster in priority order,
// each with its components and their node placements.
func (s *Summarizer) Summarize(ctx context.Context, clusterID int64) (*types.ComponentView, error) {
	snap := &storeSnapshot{ctx: ctx, set: s.set}
	view := &types.ComponentView{ClusterID: clusterID, Version: s.catalog.Version()}

	for _, svc := range s.catalog.Services() {
		state, _, err := serviceState(snap, clusterID, svc.Name)
		if err != nil {
			return nil, err
		}
		if !state.IsSelected() {
			continue
		}

		rows, err := s.set.Components.List(ctx, repos.ComponentQuery{
			ClusterID:     clusterID,
			ServiceName:   svc.Name,
			ExcludeStates: []types.State{types.StateRemoved, types.StateUnselected},
		})
		if err != nil {
			return nil, types.WrapStorageError(err, "failed to list instances of %s", svc.Name)
		}
		nodes, err := joinNodes(ctx, s.set.Nodes, s.logger, clusterID, rows)
		if err != nil {
			return nil, err
		}

		byComponent := make(map[string][]types.PlacementNode)
		for _, row := range rows {
			byComponent[row.ComponentName] = append(byComponent[row.ComponentName], placementNode(nodes[row.NodeID], row.State))
		}

		summary := types.ServiceSummary{
			Name:         svc.Name,
			Type:         svc.Type,
			Priority:     svc.Priority,
			State:        state,
			Dependencies: append([]string(nil), svc.Dependencies...),
		}
		for _, comp := range s.catalog.ComponentsByService(svc.Name) {
			placed := byComponent[comp.Name]
			sort.Slice(placed, func(i, j int) bool { return placed[i].Hostname < placed[j].Hostname })
			if placed == nil {
				placed = []types.PlacementNode{}
			}
			summary.Components = append(summary.Components, types.ComponentSummary{
				Name:     comp.Name,
				Priority: comp.Priority,
				Min:      comp.Min,
				Max:      comp.Max,
				Mutexes:  s.catalog.Exclusions(comp.Name),
				Nodes:    placed,
			})
		}
		view.Services = append(view.Services, summary)
	}
	return view, nil
}
