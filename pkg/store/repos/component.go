package repos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// ComponentQuery selects component instances of one cluster. Empty fields
// match everything.
type ComponentQuery struct {
	ClusterID     int64
	ServiceName   string
	ComponentName string
	NodeID        int64

	// Instances in any of these states are skipped
	ExcludeStates []types.State
}

func (q ComponentQuery) matches(c *types.ComponentInstance) bool {
	if q.ServiceName != "" && c.ServiceName != q.ServiceName {
		return false
	}
	if q.ComponentName != "" && c.ComponentName != q.ComponentName {
		return false
	}
	if q.NodeID != 0 && c.NodeID != q.NodeID {
		return false
	}
	for _, s := range q.ExcludeStates {
		if c.State == s {
			return false
		}
	}
	return true
}

// ComponentRepo persists component instances keyed by record id under the
// cluster namespace.
type ComponentRepo struct {
	base *BaseRepo[types.ComponentInstance]
}

func NewComponentRepo(core store.Store) *ComponentRepo {
	return &ComponentRepo{base: NewBaseRepo[types.ComponentInstance](core, types.ResourceTypeComponent)}
}

// List runs q outside a transaction.
func (r *ComponentRepo) List(ctx context.Context, q ComponentQuery) ([]*types.ComponentInstance, error) {
	items, err := r.base.List(ctx, ClusterNamespace(q.ClusterID))
	if err != nil {
		return nil, err
	}
	return filterInstances(items, q), nil
}

// FindLive returns the non-REMOVED instance for id, or nil when there is none.
func (r *ComponentRepo) FindLive(ctx context.Context, id types.InstanceIdentity) (*types.ComponentInstance, error) {
	items, err := r.List(ctx, identityQuery(id))
	if err != nil {
		return nil, err
	}
	return firstLive(items), nil
}

// WithTx binds the repository to tx.
func (r *ComponentRepo) WithTx(tx store.Transaction) *ComponentTx {
	return &ComponentTx{tx: r.base.Tx(tx)}
}

// ComponentTx is a ComponentRepo bound to an open transaction.
type ComponentTx struct {
	tx *TxRepo[types.ComponentInstance]
}

// List runs q inside the transaction.
func (r *ComponentTx) List(q ComponentQuery) ([]*types.ComponentInstance, error) {
	items, err := r.tx.List(ClusterNamespace(q.ClusterID))
	if err != nil {
		return nil, err
	}
	return filterInstances(items, q), nil
}

// FindLive returns the non-REMOVED instance for id, or nil when there is none.
func (r *ComponentTx) FindLive(id types.InstanceIdentity) (*types.ComponentInstance, error) {
	items, err := r.List(identityQuery(id))
	if err != nil {
		return nil, err
	}
	return firstLive(items), nil
}

// Put upserts an instance. A record without an id receives a fresh one.
func (r *ComponentTx) Put(c *types.ComponentInstance) error {
	if c == nil {
		return fmt.Errorf("invalid component instance")
	}
	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return r.tx.Put(ClusterNamespace(c.ClusterID), c.ID, c)
}

// Delete removes an instance record.
func (r *ComponentTx) Delete(c *types.ComponentInstance) error {
	return r.tx.Delete(ClusterNamespace(c.ClusterID), c.ID)
}

// DeleteInState removes every instance of the cluster in state s and
// returns how many were removed.
func (r *ComponentTx) DeleteInState(clusterID int64, s types.State) (int, error) {
	items, err := r.List(ComponentQuery{ClusterID: clusterID})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range items {
		if c.State != s {
			continue
		}
		if err := r.Delete(c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func identityQuery(id types.InstanceIdentity) ComponentQuery {
	return ComponentQuery{
		ClusterID:     id.ClusterID,
		ServiceName:   id.ServiceName,
		ComponentName: id.ComponentName,
		NodeID:        id.NodeID,
		ExcludeStates: []types.State{types.StateRemoved},
	}
}

func firstLive(items []*types.ComponentInstance) *types.ComponentInstance {
	for _, c := range items {
		if c.IsLive() {
			return c
		}
	}
	return nil
}

// filterInstances applies q and orders the result by service, component,
// node and creation time.
func filterInstances(items []*types.ComponentInstance, q ComponentQuery) []*types.ComponentInstance {
	out := make([]*types.ComponentInstance, 0, len(items))
	for _, c := range items {
		if q.matches(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ServiceName != b.ServiceName {
			return a.ServiceName < b.ServiceName
		}
		if a.ComponentName != b.ComponentName {
			return a.ComponentName < b.ComponentName
		}
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}
