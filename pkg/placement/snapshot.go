package placement

import (
	"context"

	"github.com/rzbill/placer/pkg/lifecycle"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

// snapshot reads instances and selections, either inside a transaction or
// directly from the store.
type snapshot interface {
	instances(q repos.ComponentQuery) ([]*types.ComponentInstance, error)
	selection(clusterID int64, service string) (*types.ServiceSelection, error)
}

type txSnapshot struct {
	components *repos.ComponentTx
	selections *repos.SelectionTx
}

func newTxSnapshot(set *repos.Set, tx store.Transaction) *txSnapshot {
	return &txSnapshot{components: set.Components.WithTx(tx), selections: set.Selections.WithTx(tx)}
}

func (s *txSnapshot) instances(q repos.ComponentQuery) ([]*types.ComponentInstance, error) {
	return s.components.List(q)
}

func (s *txSnapshot) selection(clusterID int64, service string) (*types.ServiceSelection, error) {
	return s.selections.Get(clusterID, service)
}

// txClusters and txNodes serve cluster and node lookups from the open
// transaction, so a batch never needs a second store connection.
type txClusters struct{ tx *repos.ClusterTx }

func (c txClusters) Get(_ context.Context, id int64) (*types.Cluster, error) {
	return c.tx.Get(id)
}

type txNodes struct{ tx *repos.NodeTx }

func (n txNodes) MissingIDs(_ context.Context, clusterID int64, ids []int64) ([]int64, error) {
	return n.tx.MissingIDs(clusterID, ids)
}

func (n txNodes) GetByIDs(_ context.Context, clusterID int64, ids []int64) (map[int64]*types.Node, error) {
	return n.tx.GetByIDs(clusterID, ids)
}

type storeSnapshot struct {
	ctx context.Context
	set *repos.Set
}

func (s *storeSnapshot) instances(q repos.ComponentQuery) ([]*types.ComponentInstance, error) {
	return s.set.Components.List(s.ctx, q)
}

func (s *storeSnapshot) selection(clusterID int64, service string) (*types.ServiceSelection, error) {
	return s.set.Selections.Get(s.ctx, clusterID, service)
}

// serviceState reports the state of a service in a cluster. A recorded
// SELECTED or SELECTED_ADDITION selection wins; otherwise the state is the
// aggregate of the service's instances. known is false when neither a
// selection nor any instance exists.
func serviceState(s snapshot, clusterID int64, service string) (state types.State, known bool, err error) {
	sel, err := s.selection(clusterID, service)
	if err != nil {
		return "", false, types.WrapStorageError(err, "failed to load selection of %s", service)
	}
	if sel != nil && sel.State.IsSelected() {
		return sel.State, true, nil
	}

	rows, err := s.instances(repos.ComponentQuery{ClusterID: clusterID, ServiceName: service})
	if err != nil {
		return "", false, types.WrapStorageError(err, "failed to load instances of %s", service)
	}
	if len(rows) == 0 && sel != nil {
		return sel.State, true, nil
	}
	return lifecycle.AggregateInstances(rows), sel != nil || len(rows) > 0, nil
}
