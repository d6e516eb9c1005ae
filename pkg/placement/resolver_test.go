package placement

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

func TestResolveStorageFromRelativeCluster(t *testing.T) {
	f := newFixture(t, nil)
	storageA, storageNodes := f.addCluster("storageA", types.ClusterTypeStorage, 0, 2)
	compute, _ := f.addCluster("compute", types.ClusterTypeCompute, storageA.ID, 2)

	f.selectServices(storageA.ID, types.StateSelected, "ZK", "HDFS")
	_, err := f.svc.SelectComponents(f.ctx, &types.ComponentSelectRequest{
		ClusterID: storageA.ID,
		Components: []types.ComponentSelection{{
			ServiceName: "HDFS", ComponentName: "NAMENODE", Intent: types.StateSelected,
			NodeIDs: []int64{storageNodes[0].ID},
		}},
	})
	require.NoError(t, err)

	// HDFS is found on storageA, so HIVE can be selected on the compute cluster
	f.selectServices(compute.ID, types.StateSelected, "ZK", "HIVE")

	got, err := f.svc.ResolveDependencies(f.ctx, compute.ID, "HIVE")
	require.NoError(t, err)

	computeRef := types.RefOf(compute)
	storageRef := types.RefOf(storageA)
	nn := storageNodes[0]
	want := &types.ServiceDependencies{
		ServiceName: "HIVE",
		Cluster:     types.ClusterMeta{Current: computeRef, Relative: &storageRef},
		Services: []types.ResolvedService{
			{
				ServiceName: "ZK", Type: types.ServiceTypeBase, Priority: 1,
				Cluster: computeRef, State: types.StateSelected,
			},
			{
				ServiceName: "HDFS", Type: types.ServiceTypeStorage, Priority: 3,
				Cluster:    storageRef,
				State:      types.StateSelected,
				ConfDirs:   []types.ConfDir{{Dir: "etc/hadoop", Files: []string{"hdfs-site.xml"}}},
				Properties: []types.Property{{Key: "dfs.replication", Value: "3", File: "hdfs-site.xml"}},
				Components: []types.ComponentPlacement{{
					ComponentName: "NAMENODE",
					PlacementNode: types.PlacementNode{
						NodeID: nn.ID, Hostname: nn.Hostname, IPv4: nn.IPv4,
						RAM: nn.RAM, CPUCores: nn.CPUCores, State: types.StateSelected,
					},
				}},
			},
			{
				ServiceName: "HIVE", Type: types.ServiceTypeCompute, Priority: 10,
				Cluster: computeRef, State: types.StateSelected,
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("Unexpected resolution (-want +got):\n%s", diff)
	}
}

func TestResolveWithoutRelativeCluster(t *testing.T) {
	f := newFixture(t, nil)
	compute, _ := f.addCluster("lonely", types.ClusterTypeCompute, 0, 1)

	got, err := f.svc.ResolveDependencies(f.ctx, compute.ID, "HIVE")
	require.NoError(t, err)
	require.Len(t, got.Services, 3)
	assert.Nil(t, got.Cluster.Relative)

	hdfs := got.Services[1]
	assert.Equal(t, "HDFS", hdfs.ServiceName)
	assert.True(t, hdfs.Inconsistent)
	assert.Equal(t, types.StateUnselected, hdfs.State)
	assert.Equal(t, types.ClusterRef{}, hdfs.Cluster)
	assert.Empty(t, hdfs.Components)
	assert.Equal(t, []types.ConfDir{{Dir: "etc/hadoop", Files: []string{"hdfs-site.xml"}}}, hdfs.ConfDirs)
	assert.Equal(t, types.RefOf(compute), got.Services[2].Cluster)
	assert.True(t, f.logger.AssertLoggedWithField(log.ErrorLevel, "no resolution cluster", "service", "HDFS"))

	// selecting a service that needs the missing storage cluster is still refused
	_, err = f.svc.SelectServices(f.ctx, &types.ServiceSelectRequest{
		ClusterID: compute.ID,
		Services: []types.ServiceIntent{
			{ServiceName: "ZK", Intent: types.StateSelected},
			{ServiceName: "HIVE", Intent: types.StateSelected},
		},
	})
	assert.True(t, types.IsValidationError(err))

	_, err = f.svc.ResolveDependencies(f.ctx, compute.ID, "SPARK")
	assert.True(t, types.IsNotFound(err))

	_, err = f.svc.ResolveDependencies(f.ctx, 404, "ZK")
	assert.True(t, types.IsValidationError(err))
}

func TestResolveReportsInactiveDependency(t *testing.T) {
	f := newFixture(t, nil)
	f.selectServices(f.cluster.ID, types.StateSelected, "ZK", "KAFKA")

	err := f.set.Core.Transaction(f.ctx, func(tx store.Transaction) error {
		return f.set.Selections.WithTx(tx).Put(&types.ServiceSelection{
			ClusterID: f.cluster.ID, ServiceName: "ZK", State: types.StateRemoved, Priority: 1,
		})
	})
	require.NoError(t, err)

	got, err := f.svc.ResolveDependencies(f.ctx, f.cluster.ID, "KAFKA")
	require.NoError(t, err)
	require.Len(t, got.Services, 2)

	zk := got.Services[0]
	assert.Equal(t, "ZK", zk.ServiceName)
	assert.Equal(t, types.StateRemoved, zk.State)
	assert.True(t, zk.Inconsistent)
	assert.False(t, got.Services[1].Inconsistent)
	assert.True(t, f.logger.AssertLoggedWithField(log.ErrorLevel, "inactive", "service", "ZK"))
}

func TestResolverOrder(t *testing.T) {
	r := NewResolver(testCatalog(t), nil, nil, nil)

	order, err := r.Order("HIVE")
	require.NoError(t, err)
	var names []string
	for _, s := range order {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"ZK", "HDFS", "HIVE"}, names)
}

func TestResolutionCluster(t *testing.T) {
	compute := types.ClusterRef{ID: 2, Name: "compute", Type: types.ClusterTypeCompute}
	storage := types.ClusterRef{ID: 1, Name: "storage", Type: types.ClusterTypeStorage}
	hdfs := &types.ServiceDefinition{Name: "HDFS", Type: types.ServiceTypeStorage}
	zk := &types.ServiceDefinition{Name: "ZK", Type: types.ServiceTypeBase}

	ref, err := ResolutionCluster(types.ClusterMeta{Current: compute, Relative: &storage}, hdfs)
	require.NoError(t, err)
	assert.Equal(t, storage, ref)

	ref, err = ResolutionCluster(types.ClusterMeta{Current: compute, Relative: &storage}, zk)
	require.NoError(t, err)
	assert.Equal(t, compute, ref)

	ref, err = ResolutionCluster(types.ClusterMeta{Current: storage}, hdfs)
	require.NoError(t, err)
	assert.Equal(t, storage, ref)
}
