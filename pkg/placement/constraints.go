package placement

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/types"
)

// Placement maps a component name to the set of node ids it occupies.
type Placement map[string]map[int64]bool

// Nodes returns the node ids of component in ascending order.
func (p Placement) Nodes(component string) []int64 {
	out := make([]int64, 0, len(p[component]))
	for id := range p[component] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p Placement) add(component string, node int64) {
	if p[component] == nil {
		p[component] = make(map[int64]bool)
	}
	p[component][node] = true
}

// EffectivePlacement is the union of the placed persisted rows of a cluster
// and the placed rows of a proposal. A proposed UNSELECTED or REMOVED row does
// not take a persisted node away before the batch is committed.
func EffectivePlacement(persisted, proposed []*types.ComponentInstance) Placement {
	p := make(Placement)
	for _, row := range persisted {
		if row.State.IsPlaced() {
			p.add(row.ComponentName, row.NodeID)
		}
	}
	for _, row := range proposed {
		if row.State.IsPlaced() {
			p.add(row.ComponentName, row.NodeID)
		}
	}
	return p
}

// ConstraintEngine checks min, max and mutex rules of a proposed distribution.
type ConstraintEngine struct {
	catalog *catalog.Catalog
}

func NewConstraintEngine(cat *catalog.Catalog) *ConstraintEngine {
	return &ConstraintEngine{catalog: cat}
}

// Check evaluates the proposal against the effective placement. A component
// of a touched service that the proposal leaves out must have a minimum of
// zero. Components in the proposal are checked for min, max and mutex in
// catalog order and the first violation is returned.
func (e *ConstraintEngine) Check(persisted, proposed []*types.ComponentInstance) error {
	effective := EffectivePlacement(persisted, proposed)

	present := make(map[string]bool)
	touched := make(map[string]bool)
	for _, row := range proposed {
		present[row.ComponentName] = true
		touched[row.ServiceName] = true
	}

	for _, svc := range e.catalog.Services() {
		if !touched[svc.Name] {
			continue
		}
		for _, comp := range e.catalog.ComponentsByService(svc.Name) {
			if !present[comp.Name] && comp.Min > 0 {
				return types.NewConstraintViolation(comp.Name,
					fmt.Sprintf("component %s requires at least %d instances and is not part of the request", comp.Name, comp.Min)).
					WithDetail("min", comp.Min)
			}
		}
	}

	for _, svc := range e.catalog.Services() {
		if !touched[svc.Name] {
			continue
		}
		for _, comp := range e.catalog.ComponentsByService(svc.Name) {
			if !present[comp.Name] {
				continue
			}
			if err := e.checkBounds(comp, effective); err != nil {
				return err
			}
			if err := e.checkMutex(comp.Name, effective); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *ConstraintEngine) checkBounds(comp *types.ComponentDefinition, effective Placement) error {
	actual := len(effective[comp.Name])

	if actual < comp.Min {
		return types.NewConstraintViolation(comp.Name,
			fmt.Sprintf("component %s requires at least %d instances, got %d", comp.Name, comp.Min, actual)).
			WithDetail("min", comp.Min).
			WithDetail("actual", actual)
	}

	if !comp.IsUnbounded() && actual > comp.Max {
		return types.NewConstraintViolation(comp.Name,
			fmt.Sprintf("component %s allows at most %d instances, got %d", comp.Name, comp.Max, actual)).
			WithDetail("max", comp.Max).
			WithDetail("actual", actual)
	}
	return nil
}

func (e *ConstraintEngine) checkMutex(component string, effective Placement) error {
	nodes := effective[component]
	if len(nodes) == 0 {
		return nil
	}
	for _, other := range e.catalog.Exclusions(component) {
		var shared []int64
		for id := range effective[other] {
			if nodes[id] {
				shared = append(shared, id)
			}
		}
		if len(shared) == 0 {
			continue
		}
		return types.NewConstraintViolation(component,
			fmt.Sprintf("components %s and %s are mutually exclusive but share nodes %s", component, other, joinIDs(shared))).
			WithDetail("conflicts_with", other).
			WithDetail("nodes", joinIDs(shared))
	}
	return nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
