// Package lifecycle implements the component lifecycle state machine and the
// service-level aggregation rule.
package lifecycle

import (
	"fmt"

	"github.com/rzbill/placer/pkg/types"
)

type edge struct {
	from   types.State
	intent types.State
}

// table is the complete transition table. A (state, intent) pair absent from
// the table is illegal.
var table = map[edge]types.State{
	{types.StateUnselected, types.StateSelected}:         types.StateSelected,
	{types.StateSelected, types.StateSelected}:           types.StateSelected,
	{types.StateSelectedAddition, types.StateSelected}:   types.StateSelectedAddition,
	{types.StateDeployed, types.StateSelected}:           types.StateSelectedAddition,
	{types.StateUnselected, types.StateUnselected}:       types.StateUnselected,
	{types.StateSelected, types.StateUnselected}:         types.StateUnselected,
	{types.StateSelectedAddition, types.StateUnselected}: types.StateUnselected,
	{types.StateDeployed, types.StateUnselected}:         types.StateRemoved,
	{types.StateRemoved, types.StateUnselected}:          types.StateRemoved,
}

// ErrReselectRemoved is returned when SELECTED is applied to a REMOVED instance.
// REMOVED rows are history; callers create a new instance record instead.
var ErrReselectRemoved = fmt.Errorf("cannot select a %s instance, a new instance record is required", types.StateRemoved)

// Transition returns the next state of an instance in state current when the
// operator submits intent. An empty current state is treated as UNSELECTED.
func Transition(current, intent types.State) (types.State, error) {
	if !intent.IsOperatorIntent() {
		return "", fmt.Errorf("intent %s is not operator-settable", intent)
	}
	if current == "" {
		current = types.StateUnselected
	}
	if current == types.StateRemoved && intent == types.StateSelected {
		return "", ErrReselectRemoved
	}
	next, ok := table[edge{current, intent}]
	if !ok {
		return "", fmt.Errorf("no transition from %s on %s", current, intent)
	}
	return next, nil
}

// Plan decides the state of one (component, node) pair in a batch.
//
// current is the live (non-REMOVED) row for the identity, or nil. When no
// live row exists and the component is already deployed elsewhere in the
// cluster, a selection adds capacity and yields SELECTED_ADDITION. A live
// DEPLOYED row re-selected stays DEPLOYED; only newly targeted nodes become
// SELECTED_ADDITION.
//
// The returned changed flag is false when the row does not need rewriting.
func Plan(current *types.ComponentInstance, intent types.State, componentDeployed bool) (next types.State, changed bool, err error) {
	if current == nil {
		from := types.StateUnselected
		if intent == types.StateSelected && componentDeployed {
			from = types.StateDeployed
		}
		next, err = Transition(from, intent)
		if err != nil {
			return "", false, err
		}
		return next, next != types.StateUnselected, nil
	}

	if current.State == types.StateDeployed && intent == types.StateSelected {
		return types.StateDeployed, false, nil
	}

	next, err = Transition(current.State, intent)
	if err != nil {
		return "", false, err
	}
	return next, next != current.State, nil
}

// Aggregate reduces the states of a service's component instances to the
// service state. A homogeneous set reports its single state. An empty or
// heterogeneous set reports DEPLOYED, meaning a mixed rollout is in progress.
func Aggregate(states []types.State) types.State {
	if len(states) == 0 {
		return types.StateDeployed
	}
	first := states[0]
	for _, s := range states[1:] {
		if s != first {
			return types.StateDeployed
		}
	}
	return first
}

// AggregateInstances is Aggregate over instance rows.
func AggregateInstances(instances []*types.ComponentInstance) types.State {
	states := make([]types.State, 0, len(instances))
	for _, inst := range instances {
		states = append(states, inst.State)
	}
	return Aggregate(states)
}
