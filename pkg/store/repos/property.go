package repos

import (
	"context"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// PropertyRepo persists operator property overrides per (cluster, service).
type PropertyRepo struct {
	base *BaseRepo[types.ServicePropertySet]
}

func NewPropertyRepo(core store.Store) *PropertyRepo {
	return &PropertyRepo{base: NewBaseRepo[types.ServicePropertySet](core, types.ResourceTypeServiceProperty)}
}

// Get returns the overrides of a service. A service without overrides
// yields an empty set.
func (r *PropertyRepo) Get(ctx context.Context, clusterID int64, service string) (*types.ServicePropertySet, error) {
	set, err := r.base.Get(ctx, ClusterNamespace(clusterID), service)
	if store.IsNotFoundError(err) {
		return &types.ServicePropertySet{ClusterID: clusterID, ServiceName: service}, nil
	}
	return set, err
}

// Set replaces the overrides of a service.
func (r *PropertyRepo) Set(ctx context.Context, set *types.ServicePropertySet) error {
	return r.base.Core().Transaction(ctx, func(tx store.Transaction) error {
		return r.base.Tx(tx).Put(ClusterNamespace(set.ClusterID), set.ServiceName, set)
	})
}
