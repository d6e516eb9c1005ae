package placement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/confpre"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

// testCatalog is a small catalog with a mutex pair and a storage dependency.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New("test",
		[]types.ServiceDefinition{
			{Name: "ZK", Type: types.ServiceTypeBase, Priority: 1},
			{Name: "HDFS", Type: types.ServiceTypeStorage, Priority: 3, Dependencies: []string{"ZK"},
				ConfDirs:   []types.ConfDir{{Dir: "etc/hadoop", Files: []string{"hdfs-site.xml"}}},
				Properties: []types.Property{{Key: "dfs.replication", Value: "3", File: "hdfs-site.xml"}}},
			{Name: "KAFKA", Type: types.ServiceTypeCompute, Priority: 5, Dependencies: []string{"ZK"}},
			{Name: "HIVE", Type: types.ServiceTypeCompute, Priority: 10, Dependencies: []string{"HDFS", "ZK"}},
		},
		[]types.ComponentDefinition{
			{Name: "CLIENT", ServiceName: "ZK", Priority: 1, Min: 1, Max: 1, Mutexes: []string{"BROKER"}},
			{Name: "NAMENODE", ServiceName: "HDFS", Priority: 1, Min: 1, Max: 2},
			{Name: "BROKER", ServiceName: "KAFKA", Priority: 1, Min: 3, Max: types.Unbounded},
			{Name: "METASTORE", ServiceName: "HIVE", Priority: 1, Min: 1, Max: types.Unbounded},
			{Name: "HIVE_CLIENT", ServiceName: "HIVE", Priority: 2, Min: 0, Max: types.Unbounded},
		})
	require.NoError(t, err)
	return cat
}

// backendNames lists the store backends the mutating paths are run against.
var backendNames = []string{"memory", "badger", "sqlite"}

// openBackend opens a fresh store of the named backend in a temp directory.
// SQLite gets a single pooled connection, so a batch that reads outside its
// own transaction blocks until the transaction timeout.
func openBackend(t *testing.T, name string) store.Store {
	t.Helper()
	var core store.Store
	switch name {
	case "badger":
		core = store.NewBadgerStore(log.NewTestLogger())
	case "sqlite":
		core = store.NewSQLiteStore(log.NewTestLogger(), 1)
	default:
		return store.NewMemoryStore()
	}
	require.NoError(t, core.Open(t.TempDir()))
	t.Cleanup(func() { core.Close() })
	return core
}

// forEachBackend runs fn as a subtest against every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, core store.Store)) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			fn(t, openBackend(t, name))
		})
	}
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	svc     *Service
	set     *repos.Set
	logger  *log.TestLogger
	cluster *types.Cluster
	nodes   []*types.Node
}

type fixtureOption func(*Options)

func withTimeout(d time.Duration) fixtureOption {
	return func(o *Options) { o.TransactionTimeout = d }
}

func withoutReselect() fixtureOption {
	return func(o *Options) { o.AllowReselectRemoved = false }
}

func newFixture(t *testing.T, core store.Store, opts ...fixtureOption) *fixture {
	t.Helper()
	if core == nil {
		core = store.NewMemoryStore()
	}
	cat := testCatalog(t)
	set := repos.New(core)
	logger := log.NewTestLogger()

	o := Options{AllowReselectRemoved: true, Logger: logger}
	for _, opt := range opts {
		opt(&o)
	}

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		svc:    NewService(cat, set, confpre.NewProvider(cat, set.Properties, logger), o),
		set:    set,
		logger: logger,
	}
	f.cluster, f.nodes = f.addCluster("mixed", types.ClusterTypeMixed, 0, 5)
	return f
}

func (f *fixture) addCluster(name string, ct types.ClusterType, relative int64, nodes int) (*types.Cluster, []*types.Node) {
	f.t.Helper()
	c := &types.Cluster{Name: name, Type: ct, RelativeClusterID: relative}
	if err := f.set.Clusters.Create(f.ctx, c); err != nil {
		f.t.Fatalf("Failed to create cluster: %v", err)
	}
	var out []*types.Node
	for i := 1; i <= nodes; i++ {
		n := &types.Node{
			ClusterID: c.ID,
			Hostname:  fmt.Sprintf("%s-%d", name, i),
			IPv4:      fmt.Sprintf("10.%d.0.%d", c.ID, i),
			RAM:       128,
			CPUCores:  32,
		}
		if err := f.set.Nodes.Add(f.ctx, n); err != nil {
			f.t.Fatalf("Failed to add node: %v", err)
		}
		out = append(out, n)
	}
	return c, out
}

// node returns the id of the i-th (1-based) node of the default cluster.
func (f *fixture) node(i int) int64 {
	return f.nodes[i-1].ID
}

func (f *fixture) nodeIDs(idx ...int) []int64 {
	out := make([]int64, len(idx))
	for i, n := range idx {
		out[i] = f.node(n)
	}
	return out
}

func (f *fixture) selectServices(clusterID int64, intent types.State, names ...string) {
	f.t.Helper()
	req := &types.ServiceSelectRequest{ClusterID: clusterID}
	for _, n := range names {
		req.Services = append(req.Services, types.ServiceIntent{ServiceName: n, Intent: intent})
	}
	if _, err := f.svc.SelectServices(f.ctx, req); err != nil {
		f.t.Fatalf("Failed to select services %v: %v", names, err)
	}
}

func (f *fixture) selectComponent(service, component string, intent types.State, nodes ...int) (*types.SelectResult, error) {
	return f.svc.SelectComponents(f.ctx, &types.ComponentSelectRequest{
		ClusterID: f.cluster.ID,
		Components: []types.ComponentSelection{{
			ServiceName:   service,
			ComponentName: component,
			Intent:        intent,
			NodeIDs:       f.nodeIDs(nodes...),
		}},
	})
}

func (f *fixture) deploy(service, component string, nodes ...int) {
	f.t.Helper()
	for _, n := range nodes {
		id := types.InstanceIdentity{ClusterID: f.cluster.ID, NodeID: f.node(n), ServiceName: service, ComponentName: component}
		if _, err := f.svc.SwitchComponentState(f.ctx, id, types.StateDeployed); err != nil {
			f.t.Fatalf("Failed to deploy %s: %v", id, err)
		}
	}
}

// states maps node index to instance state for the live rows of component.
func (f *fixture) states(component string) map[int]types.State {
	f.t.Helper()
	rows, err := f.set.Components.List(f.ctx, repos.ComponentQuery{ClusterID: f.cluster.ID, ComponentName: component})
	if err != nil {
		f.t.Fatalf("Failed to list instances: %v", err)
	}
	out := make(map[int]types.State)
	for _, row := range rows {
		for i, n := range f.nodes {
			if n.ID == row.NodeID && row.IsLive() {
				out[i+1] = row.State
			}
		}
	}
	return out
}

func (f *fixture) rowCount() int {
	f.t.Helper()
	rows, err := f.set.Components.List(f.ctx, repos.ComponentQuery{ClusterID: f.cluster.ID})
	if err != nil {
		f.t.Fatalf("Failed to list instances: %v", err)
	}
	return len(rows)
}
