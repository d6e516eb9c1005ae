package types

import (
	"fmt"
	"strings"
)

// State is the lifecycle state shared by component instances and the
// service-level aggregate.
type State string

const (
	// StateUnselected means the operator has not chosen the component (or
	// withdrew a choice that was never deployed).
	StateUnselected State = "UNSELECTED"

	// StateSelected means the component is chosen for a first deployment.
	StateSelected State = "SELECTED"

	// StateSelectedAddition means the component is chosen on a new node of an
	// already deployed component.
	StateSelectedAddition State = "SELECTED_ADDITION"

	// StateDeployed means installation was confirmed by the deployment executor.
	StateDeployed State = "DEPLOYED"

	// StateRemoved marks a deployed instance for teardown. Rows in this state are history.
	StateRemoved State = "REMOVED"
)

// AllStates lists every lifecycle state in declaration order.
var AllStates = []State{
	StateUnselected,
	StateSelected,
	StateSelectedAddition,
	StateDeployed,
	StateRemoved,
}

// ParseState parses a lifecycle state, case-insensitively.
func ParseState(s string) (State, error) {
	candidate := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStates {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// IsSelected reports whether the state is SELECTED or SELECTED_ADDITION.
func (s State) IsSelected() bool {
	return s == StateSelected || s == StateSelectedAddition
}

// IsPlaced reports whether the state occupies a node, i.e. it is neither
// UNSELECTED nor REMOVED.
func (s State) IsPlaced() bool {
	return s != StateUnselected && s != StateRemoved && s != ""
}

// IsOperatorIntent reports whether an operator may submit the state as a desired intent.
func (s State) IsOperatorIntent() bool {
	return s == StateSelected || s == StateUnselected
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}
