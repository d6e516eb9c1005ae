package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/placer/pkg/types"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    types.State
		intent  types.State
		want    types.State
		wantErr bool
	}{
		{"", types.StateSelected, types.StateSelected, false},
		{types.StateUnselected, types.StateSelected, types.StateSelected, false},
		{types.StateSelected, types.StateSelected, types.StateSelected, false},
		{types.StateSelectedAddition, types.StateSelected, types.StateSelectedAddition, false},
		{types.StateDeployed, types.StateSelected, types.StateSelectedAddition, false},
		{types.StateRemoved, types.StateSelected, "", true},
		{"", types.StateUnselected, types.StateUnselected, false},
		{types.StateSelected, types.StateUnselected, types.StateUnselected, false},
		{types.StateSelectedAddition, types.StateUnselected, types.StateUnselected, false},
		{types.StateDeployed, types.StateUnselected, types.StateRemoved, false},
		{types.StateRemoved, types.StateUnselected, types.StateRemoved, false},
		{types.StateSelected, types.StateDeployed, "", true},
		{types.StateSelected, types.StateSelectedAddition, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"+"+string(tt.intent), func(t *testing.T) {
			got, err := Transition(tt.from, tt.intent)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionReselectRemoved(t *testing.T) {
	_, err := Transition(types.StateRemoved, types.StateSelected)
	assert.ErrorIs(t, err, ErrReselectRemoved)
}

func TestTransitionIdempotent(t *testing.T) {
	for _, from := range types.AllStates {
		for _, intent := range []types.State{types.StateSelected, types.StateUnselected} {
			once, err := Transition(from, intent)
			if err != nil {
				continue
			}
			twice, err := Transition(once, intent)
			require.NoError(t, err, "%s+%s", from, intent)
			assert.Equal(t, once, twice, "%s+%s", from, intent)
		}
	}
}

func TestPlan(t *testing.T) {
	deployed := &types.ComponentInstance{State: types.StateDeployed}
	selected := &types.ComponentInstance{State: types.StateSelected}
	addition := &types.ComponentInstance{State: types.StateSelectedAddition}

	tests := []struct {
		name        string
		current     *types.ComponentInstance
		intent      types.State
		deployed    bool
		want        types.State
		wantChanged bool
	}{
		{"fresh select", nil, types.StateSelected, false, types.StateSelected, true},
		{"fresh select on deployed component", nil, types.StateSelected, true, types.StateSelectedAddition, true},
		{"fresh unselect", nil, types.StateUnselected, true, types.StateUnselected, false},
		{"deployed reselect stays", deployed, types.StateSelected, true, types.StateDeployed, false},
		{"deployed unselect", deployed, types.StateUnselected, true, types.StateRemoved, true},
		{"selected again", selected, types.StateSelected, false, types.StateSelected, false},
		{"selected withdrawn", selected, types.StateUnselected, false, types.StateUnselected, true},
		{"addition withdrawn", addition, types.StateUnselected, true, types.StateUnselected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Plan(tt.current, tt.intent, tt.deployed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, types.StateDeployed, Aggregate(nil))
	assert.Equal(t, types.StateSelected, Aggregate([]types.State{types.StateSelected, types.StateSelected}))
	assert.Equal(t, types.StateRemoved, Aggregate([]types.State{types.StateRemoved}))
	assert.Equal(t, types.StateDeployed, Aggregate([]types.State{types.StateSelected, types.StateDeployed}))
	assert.Equal(t, types.StateDeployed, Aggregate([]types.State{types.StateSelectedAddition, types.StateSelected}))

	rows := []*types.ComponentInstance{{State: types.StateSelectedAddition}, {State: types.StateSelectedAddition}}
	assert.Equal(t, types.StateSelectedAddition, AggregateInstances(rows))
}
