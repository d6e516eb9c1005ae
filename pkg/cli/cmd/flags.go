package cmd

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/rzbill/placer/pkg/types"
)

// stateValue is a pflag.Value accepting a lifecycle state.
type stateValue struct {
	state *types.State
}

var _ pflag.Value = (*stateValue)(nil)

func newStateValue(def types.State, p *types.State) *stateValue {
	*p = def
	return &stateValue{state: p}
}

func (v *stateValue) String() string { return string(*v.state) }

func (v *stateValue) Set(s string) error {
	st, err := types.ParseState(s)
	if err != nil {
		return err
	}
	*v.state = st
	return nil
}

func (v *stateValue) Type() string { return "state" }

// clusterTypeValue is a pflag.Value accepting COMPUTE, STORAGE or MIXED.
type clusterTypeValue struct {
	typ *types.ClusterType
}

var _ pflag.Value = (*clusterTypeValue)(nil)

func newClusterTypeValue(def types.ClusterType, p *types.ClusterType) *clusterTypeValue {
	*p = def
	return &clusterTypeValue{typ: p}
}

func (v *clusterTypeValue) String() string { return string(*v.typ) }

func (v *clusterTypeValue) Set(s string) error {
	t, err := types.ParseClusterType(s)
	if err != nil {
		return err
	}
	*v.typ = t
	return nil
}

func (v *clusterTypeValue) Type() string { return "clusterType" }

// stateNames lists the accepted values for help text.
func stateNames(states ...types.State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
