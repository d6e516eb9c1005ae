package repos

import (
	"context"
	"sort"
	"time"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// SelectionRepo persists the operator's service selections per cluster.
type SelectionRepo struct {
	base *BaseRepo[types.ServiceSelection]
}

func NewSelectionRepo(core store.Store) *SelectionRepo {
	return &SelectionRepo{base: NewBaseRepo[types.ServiceSelection](core, types.ResourceTypeServiceSelection)}
}

// Get returns the selection of a service, or nil when none is recorded.
func (r *SelectionRepo) Get(ctx context.Context, clusterID int64, service string) (*types.ServiceSelection, error) {
	sel, err := r.base.Get(ctx, ClusterNamespace(clusterID), service)
	if store.IsNotFoundError(err) {
		return nil, nil
	}
	return sel, err
}

// List returns every selection recorded for a cluster, ordered by priority then name.
func (r *SelectionRepo) List(ctx context.Context, clusterID int64) ([]*types.ServiceSelection, error) {
	items, err := r.base.List(ctx, ClusterNamespace(clusterID))
	if err != nil {
		return nil, err
	}
	sortSelections(items)
	return items, nil
}

// WithTx binds the repository to tx.
func (r *SelectionRepo) WithTx(tx store.Transaction) *SelectionTx {
	return &SelectionTx{tx: r.base.Tx(tx)}
}

// SelectionTx is a SelectionRepo bound to an open transaction.
type SelectionTx struct {
	tx *TxRepo[types.ServiceSelection]
}

func (r *SelectionTx) Get(clusterID int64, service string) (*types.ServiceSelection, error) {
	sel, err := r.tx.Get(ClusterNamespace(clusterID), service)
	if store.IsNotFoundError(err) {
		return nil, nil
	}
	return sel, err
}

func (r *SelectionTx) List(clusterID int64) ([]*types.ServiceSelection, error) {
	items, err := r.tx.List(ClusterNamespace(clusterID))
	if err != nil {
		return nil, err
	}
	sortSelections(items)
	return items, nil
}

func (r *SelectionTx) Put(sel *types.ServiceSelection) error {
	sel.UpdatedAt = time.Now()
	return r.tx.Put(ClusterNamespace(sel.ClusterID), sel.ServiceName, sel)
}

func (r *SelectionTx) Delete(clusterID int64, service string) error {
	return r.tx.Delete(ClusterNamespace(clusterID), service)
}

func sortSelections(items []*types.ServiceSelection) {
	sort.Slice(items, func(i, j int) bool {
		return lessPriority(items[i].Priority, items[i].ServiceName, items[j].Priority, items[j].ServiceName)
	})
}

func lessPriority(pi int, ni string, pj int, nj string) bool {
	if pi != pj {
		return pi < pj
	}
	return ni < nj
}
