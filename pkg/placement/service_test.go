package placement

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

func TestBrokerMinimum(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2)
	require.Error(t, err)
	assert.True(t, types.IsConstraintViolation(err))
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "BROKER", typed.Details["component"])
	assert.Equal(t, 3, typed.Details["min"])
	assert.Equal(t, 2, typed.Details["actual"])
	assert.Equal(t, 0, f.rowCount())

	res, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, res.Written, 3)
	assert.Equal(t, map[int]types.State{
		1: types.StateSelected,
		2: types.StateSelected,
		3: types.StateSelected,
	}, f.states("BROKER"))
}

func TestBrokerAddition(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)
	f.deploy("KAFKA", "BROKER", 1, 2, 3)

	state, err := f.svc.ServiceState(f.ctx, f.cluster.ID, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, types.StateDeployed, state)

	// a deployed service has to be re-selected before capacity is added
	_, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 4)
	assert.True(t, types.IsValidationError(err))

	f.selectServices(f.cluster.ID, types.StateSelected, "KAFKA")
	state, err = f.svc.ServiceState(f.ctx, f.cluster.ID, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, types.StateSelectedAddition, state)

	res, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 4)
	require.NoError(t, err)
	require.Len(t, res.Written, 1)
	assert.Equal(t, types.StateSelectedAddition, res.Written[0].State)

	want := map[int]types.State{
		1: types.StateDeployed,
		2: types.StateDeployed,
		3: types.StateDeployed,
		4: types.StateSelectedAddition,
	}
	assert.Equal(t, want, f.states("BROKER"))

	// re-submitting the full footprint changes nothing
	res, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3, 4)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, want, f.states("BROKER"))
}

func TestMutexViolation(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)

	_, err = f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
	require.Error(t, err)
	assert.True(t, types.IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "CLIENT")
	assert.Contains(t, err.Error(), "BROKER")
	assert.Empty(t, f.states("CLIENT"))

	_, err = f.selectComponent("ZK", "CLIENT", types.StateSelected, 4)
	require.NoError(t, err)

	// the exclusion is symmetric
	_, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3, 4)
	assert.True(t, types.IsConstraintViolation(err))
}

func TestMaximum(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK")

	_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 1, 2)
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindConstraint, typed.Kind)
	assert.Equal(t, 1, typed.Details["max"])
	assert.Equal(t, 2, typed.Details["actual"])
}

func TestSelectIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)
	once := f.states("BROKER")

	res, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, once, f.states("BROKER"))
	assert.Equal(t, 3, f.rowCount())
}

func TestSelectUnselectRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)

	res, err := f.selectComponent("KAFKA", "BROKER", types.StateUnselected, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pruned)
	assert.Equal(t, 0, f.rowCount())
}

func TestUnselectCountsPersistedRows(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)

	// the rows being unselected still count until the batch commits
	res, err := f.selectComponent("KAFKA", "BROKER", types.StateUnselected, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)
	assert.Equal(t, map[int]types.State{2: types.StateSelected, 3: types.StateSelected}, f.states("BROKER"))

	_, err = f.selectComponent("KAFKA", "BROKER", types.StateUnselected, 2, 3)
	require.Error(t, err)
	assert.True(t, types.IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "at least 3 instances, got 2")
	assert.Equal(t, 2, f.rowCount())
}

func TestOmittedComponentMinimum(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "HDFS", "HIVE")

	res, err := f.svc.SelectComponents(f.ctx, &types.ComponentSelectRequest{
		ClusterID: f.cluster.ID,
		Components: []types.ComponentSelection{
			{ServiceName: "HIVE", ComponentName: "METASTORE", Intent: types.StateSelected, NodeIDs: f.nodeIDs(2)},
			{ServiceName: "HIVE", ComponentName: "HIVE_CLIENT", Intent: types.StateSelected, NodeIDs: f.nodeIDs(1)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)

	// a placed METASTORE does not excuse leaving it out of the batch
	_, err = f.selectComponent("HIVE", "HIVE_CLIENT", types.StateSelected, 1, 3)
	require.Error(t, err)
	assert.True(t, types.IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "METASTORE requires at least 1 instances and is not part of the request")
	assert.Equal(t, map[int]types.State{1: types.StateSelected}, f.states("HIVE_CLIENT"))

	// the optional client may be left out
	_, err = f.selectComponent("HIVE", "METASTORE", types.StateSelected, 2, 4)
	require.NoError(t, err)
}

func TestSelectComponentsValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, otherNodes := f.addCluster("other", types.ClusterTypeMixed, 0, 1)

	sel := func(service, component string, intent types.State, nodes ...int64) types.ComponentSelection {
		return types.ComponentSelection{ServiceName: service, ComponentName: component, Intent: intent, NodeIDs: nodes}
	}
	n1, n2, n3 := f.node(1), f.node(2), f.node(3)

	tests := []struct {
		name     string
		req      *types.ComponentSelectRequest
		contains string
	}{
		{
			name:     "component of another service",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("ZK", "BROKER", types.StateSelected, n1)}},
			contains: "does not belong",
		},
		{
			name:     "service not selected",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("HIVE", "METASTORE", types.StateSelected, n1)}},
			contains: "select the service first",
		},
		{
			name: "duplicate component",
			req: &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{
				sel("KAFKA", "BROKER", types.StateSelected, n1, n2, n3),
				sel("KAFKA", "BROKER", types.StateSelected, n1),
			}},
			contains: "more than once",
		},
		{
			name:     "node of another cluster",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("KAFKA", "BROKER", types.StateSelected, n1, n2, otherNodes[0].ID)}},
			contains: "do not exist",
		},
		{
			name:     "non-operator intent",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("KAFKA", "BROKER", types.StateDeployed, n1, n2, n3)}},
			contains: "not allowed",
		},
		{
			name:     "empty node list",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("KAFKA", "BROKER", types.StateSelected)}},
			contains: "has no nodes",
		},
		{
			name:     "duplicate node",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID, Components: []types.ComponentSelection{sel("KAFKA", "BROKER", types.StateSelected, n1, n2, n2)}},
			contains: "listed twice",
		},
		{
			name:     "empty request",
			req:      &types.ComponentSelectRequest{ClusterID: f.cluster.ID},
			contains: "no components",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SelectComponents(f.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, types.IsValidationError(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, 0, f.rowCount())
		})
	}
}

func TestReselectRemoved(t *testing.T) {
	prepare := func(t *testing.T, f *fixture) {
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK")
		_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
		require.NoError(t, err)
		f.deploy("ZK", "CLIENT", 1)
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK")

		res, err := f.selectComponent("ZK", "CLIENT", types.StateUnselected, 1)
		require.NoError(t, err)
		require.Len(t, res.Written, 1)
		assert.Equal(t, types.StateRemoved, res.Written[0].State)
	}

	t.Run("allowed", func(t *testing.T) {
		f := newFixture(t, nil)
		prepare(t, f)

		res, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
		require.NoError(t, err)
		require.Len(t, res.Written, 1)
		assert.Equal(t, types.StateSelected, res.Written[0].State)
		assert.Equal(t, 2, f.rowCount(), "removed row stays as history")
	})

	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t, nil, withoutReselect())
		prepare(t, f)

		_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
		assert.True(t, types.IsValidationError(err))
		assert.Equal(t, 1, f.rowCount())
	})
}

func TestBatchLifecycleOnEveryBackend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core store.Store) {
		f := newFixture(t, core, withTimeout(5*time.Second))
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

		_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2)
		require.Error(t, err)
		assert.True(t, types.IsConstraintViolation(err))
		assert.Equal(t, 0, f.rowCount())

		_, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
		require.NoError(t, err)
		f.deploy("KAFKA", "BROKER", 1, 2, 3)

		state, err := f.svc.ServiceState(f.ctx, f.cluster.ID, "KAFKA")
		require.NoError(t, err)
		assert.Equal(t, types.StateDeployed, state)

		f.selectServices(f.cluster.ID, types.StateSelected, "KAFKA")
		_, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 4)
		require.NoError(t, err)
		assert.Equal(t, map[int]types.State{
			1: types.StateDeployed,
			2: types.StateDeployed,
			3: types.StateDeployed,
			4: types.StateSelectedAddition,
		}, f.states("BROKER"))

		view, err := f.svc.ListComponents(f.ctx, f.cluster.ID)
		require.NoError(t, err)
		require.Len(t, view.Services, 2)
		assert.Len(t, view.Services[1].Components[0].Nodes, 4)

		_, err = f.selectComponent("KAFKA", "BROKER", types.StateUnselected, 1, 2, 3, 4)
		require.NoError(t, err)
		assert.Empty(t, f.states("BROKER"))
		assert.Equal(t, 3, f.rowCount(), "deployed brokers stay as REMOVED rows")
	})
}

func TestConcurrentBatchesSerialize(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core store.Store) {
		f := newFixture(t, core, withTimeout(10*time.Second))
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK")

		var wg sync.WaitGroup
		var committed, rejected atomic.Int32
		for i := 1; i <= 5; i++ {
			wg.Add(1)
			go func(node int) {
				defer wg.Done()
				_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, node)
				switch {
				case err == nil:
					committed.Add(1)
				case types.IsConstraintViolation(err):
					rejected.Add(1)
				default:
					t.Errorf("Unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), committed.Load())
		assert.Equal(t, int32(4), rejected.Load())
		assert.Len(t, f.states("CLIENT"), 1)
	})
}

func TestLockWaitTimeout(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core store.Store) {
		f := newFixture(t, core, withTimeout(200*time.Millisecond))
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK")

		release, err := f.svc.locks.acquire(context.Background(), f.cluster.ID)
		require.NoError(t, err)
		defer release()

		_, err = f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
		require.Error(t, err)
		assert.True(t, types.IsStorageError(err))
		assert.True(t, types.Retryable(err))
		assert.Equal(t, 0, f.rowCount())
	})
}

// slowStore delays every transaction past its body when enabled.
type slowStore struct {
	store.Store
	delay   time.Duration
	enabled atomic.Bool
}

func (s *slowStore) Transaction(ctx context.Context, fn func(tx store.Transaction) error) error {
	return s.Store.Transaction(ctx, func(tx store.Transaction) error {
		err := fn(tx)
		if s.enabled.Load() {
			time.Sleep(s.delay)
		}
		return err
	})
}

func TestTransactionTimeoutRollsBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, inner store.Store) {
		core := &slowStore{Store: inner, delay: 600 * time.Millisecond}
		f := newFixture(t, core, withTimeout(200*time.Millisecond))
		f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

		core.enabled.Store(true)
		_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
		core.enabled.Store(false)

		require.Error(t, err)
		assert.True(t, types.IsStorageError(err))
		assert.Equal(t, 0, f.rowCount())
	})
}

func TestSelectServices(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: f.cluster.ID,
		Services:  []types.ServiceIntent{{ServiceName: "KAFKA", Intent: types.StateSelected}},
	})
	assert.True(t, types.IsValidationError(err), "dependency must be selected first")

	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: f.cluster.ID,
		Services: []types.ServiceIntent{
			{ServiceName: "ZK", Intent: types.StateSelected},
			{ServiceName: "ZK", Intent: types.StateSelected},
		},
	})
	assert.True(t, types.IsValidationError(err))

	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: f.cluster.ID,
		Services:  []types.ServiceIntent{{ServiceName: "SPARK", Intent: types.StateSelected}},
	})
	assert.True(t, types.IsValidationError(err))

	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: 404,
		Services:  []types.ServiceIntent{{ServiceName: "ZK", Intent: types.StateSelected}},
	})
	assert.True(t, types.IsValidationError(err))

	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err = f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)

	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: f.cluster.ID,
		Services:  []types.ServiceIntent{{ServiceName: "KAFKA", Intent: types.StateUnselected}},
	})
	assert.True(t, types.IsValidationError(err), "placed components block unselect")

	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: f.cluster.ID,
		Services:  []types.ServiceIntent{{ServiceName: "ZK", Intent: types.StateUnselected}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required by KAFKA")

	_, err = f.selectComponent("KAFKA", "BROKER", types.StateUnselected, 1, 2, 3)
	require.NoError(t, err)
	f.selectServices(f.cluster.ID, types.StateUnselected, "KAFKA", "ZK")

	sel, err := f.set.Selections.Get(f.ctx, f.cluster.ID, "KAFKA")
	require.NoError(t, err)
	assert.Nil(t, sel, "unselected selections are pruned")
}

func TestUnselectStorageServiceUsedByLinkedCluster(t *testing.T) {
	forEachBackend(t, func(t *testing.T, core store.Store) {
		f := newFixture(t, core, withTimeout(5*time.Second))
		storage, _ := f.addCluster("store", types.ClusterTypeStorage, 0, 1)
		compute, _ := f.addCluster("compute", types.ClusterTypeCompute, storage.ID, 1)
		f.selectServices(storage.ID, types.StateSelected, "ZK", "HDFS")
		f.selectServices(compute.ID, types.StateSelected, "ZK", "HIVE")

		_, err := f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
			ClusterID: storage.ID,
			Services:  []types.ServiceIntent{{ServiceName: "HDFS", Intent: types.StateUnselected}},
		})
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
		assert.Contains(t, err.Error(), "required by HIVE in cluster compute")

		f.selectServices(compute.ID, types.StateUnselected, "HIVE")
		f.selectServices(storage.ID, types.StateUnselected, "HDFS")

		sel, err := f.set.Selections.Get(f.ctx, storage.ID, "HDFS")
		require.NoError(t, err)
		assert.Nil(t, sel)
	})
}

func TestServiceState(t *testing.T) {
	f := newFixture(t, nil)

	// a service with no instances aggregates to DEPLOYED
	state, err := f.svc.ServiceState(f.ctx, f.cluster.ID, "ZK")
	require.NoError(t, err)
	assert.Equal(t, types.StateDeployed, state)

	f.selectServices(f.cluster.ID, types.StateSelected, "ZK")
	state, err = f.svc.ServiceState(f.ctx, f.cluster.ID, "ZK")
	require.NoError(t, err)
	assert.Equal(t, types.StateSelected, state)

	_, err = f.svc.ServiceState(f.ctx, f.cluster.ID, "SPARK")
	assert.True(t, types.IsNotFound(err))

	_, err = f.svc.ServiceState(f.ctx, 404, "ZK")
	assert.True(t, types.IsValidationError(err))
}

func TestSwitchComponentState(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK")
	_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 2)
	require.NoError(t, err)

	id := types.InstanceIdentity{ClusterID: f.cluster.ID, NodeID: f.node(2), ServiceName: "ZK", ComponentName: "CLIENT"}
	row, err := f.svc.SwitchComponentState(f.ctx, id, types.StateDeployed)
	require.NoError(t, err)
	assert.Equal(t, types.StateDeployed, row.State)

	sel, err := f.set.Selections.Get(f.ctx, f.cluster.ID, "ZK")
	require.NoError(t, err)
	assert.Equal(t, types.StateDeployed, sel.State)

	_, err = f.svc.SwitchComponentState(f.ctx, id, types.StateUnselected)
	assert.True(t, types.IsValidationError(err))

	_, err = f.svc.SwitchComponentState(f.ctx, id, types.State("RUNNING"))
	assert.True(t, types.IsValidationError(err))

	id.NodeID = f.node(3)
	_, err = f.svc.SwitchComponentState(f.ctx, id, types.StateDeployed)
	assert.True(t, types.IsNotFound(err))
}

func TestListServiceComponents(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 1, 2, 3)
	require.NoError(t, err)
	_, err = f.selectComponent("ZK", "CLIENT", types.StateSelected, 4)
	require.NoError(t, err)

	rows, err := f.svc.ListServiceComponents(f.ctx, f.cluster.ID, "KAFKA")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = f.svc.ListServiceComponentsOnNode(f.ctx, f.cluster.ID, f.node(4), "ZK")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CLIENT", rows[0].ComponentName)

	rows, err = f.svc.ListServiceComponentsOnNode(f.ctx, f.cluster.ID, f.node(4), "KAFKA")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = f.svc.ListServiceComponents(f.ctx, f.cluster.ID, "SPARK")
	assert.True(t, types.IsNotFound(err))
}

func TestListComponents(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")
	_, err := f.selectComponent("KAFKA", "BROKER", types.StateSelected, 3, 1, 2)
	require.NoError(t, err)

	view, err := f.svc.ListComponents(f.ctx, f.cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, "test", view.Version)
	require.Len(t, view.Services, 2)
	assert.Equal(t, "ZK", view.Services[0].Name)
	assert.Equal(t, "KAFKA", view.Services[1].Name)

	zk := view.Services[0]
	require.Len(t, zk.Components, 1)
	assert.Empty(t, zk.Components[0].Nodes)
	assert.Equal(t, []string{"BROKER"}, zk.Components[0].Mutexes)

	broker := view.Services[1].Components[0]
	var hosts []string
	for _, n := range broker.Nodes {
		hosts = append(hosts, n.Hostname)
		assert.Equal(t, types.StateSelected, n.State)
	}
	assert.Equal(t, []string{"mixed-1", "mixed-2", "mixed-3"}, hosts)

	// callers own the returned slices
	view.Services[1].Dependencies[0] = "HDFS"
	zk.Components[0].Mutexes[0] = "METASTORE"
	again, err := f.svc.ListComponents(f.ctx, f.cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZK"}, again.Services[1].Dependencies)
	assert.Equal(t, []string{"BROKER"}, again.Services[0].Components[0].Mutexes)
	assert.Equal(t, []string{"BROKER"}, f.svc.Catalog().Exclusions("CLIENT"))
}

func TestListComponentsUnknownNode(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK")

	err := f.set.Core.Transaction(f.ctx, func(tx store.Transaction) error {
		return f.set.Components.WithTx(tx).Put(&types.ComponentInstance{
			ClusterID:     f.cluster.ID,
			NodeID:        999,
			ServiceName:   "ZK",
			ComponentName: "CLIENT",
			State:         types.StateSelected,
		})
	})
	require.NoError(t, err)

	_, err = f.svc.ListComponents(f.ctx, f.cluster.ID)
	require.Error(t, err)
	assert.True(t, types.IsConsistencyError(err))
	assert.False(t, types.IsValidationError(err))
	assert.True(t, f.logger.AssertLogged(log.ErrorLevel, "unknown node"))
}

func TestRejectedBatchIsLogged(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.selectComponent("ZK", "CLIENT", types.StateSelected, 1)
	require.Error(t, err)

	var found bool
	for _, e := range f.logger.GetEntries() {
		if e.Level == log.WarnLevel && strings.Contains(e.Message, "rejected") {
			found = true
		}
	}
	assert.True(t, found)
}
