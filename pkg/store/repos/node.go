package repos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

const nodeSequence = "nodes"

// NodeRepo persists nodes under their cluster's namespace.
type NodeRepo struct {
	base *BaseRepo[types.Node]
}

func NewNodeRepo(core store.Store) *NodeRepo {
	return &NodeRepo{base: NewBaseRepo[types.Node](core, types.ResourceTypeNode)}
}

// Add assigns an ID and stores the node. The cluster must exist and the
// hostname must be unique among the cluster's active nodes.
func (r *NodeRepo) Add(ctx context.Context, n *types.Node) error {
	if n == nil {
		return fmt.Errorf("invalid node")
	}
	if err := n.Validate(); err != nil {
		return err
	}

	return r.base.Core().Transaction(ctx, func(tx store.Transaction) error {
		var cluster types.Cluster
		err := tx.Get(types.ResourceTypeCluster, types.SystemNamespace, idName(n.ClusterID), &cluster)
		if store.IsNotFoundError(err) {
			return types.NewValidationErrorf("cluster %d does not exist", n.ClusterID)
		} else if err != nil {
			return err
		}

		txr := r.base.Tx(tx)
		ns := ClusterNamespace(n.ClusterID)
		existing, err := txr.List(ns)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.IsActive() && strings.EqualFold(e.Hostname, n.Hostname) {
				return types.NewValidationErrorf("node %s already exists in cluster %s", n.Hostname, cluster.Name)
			}
		}

		id, err := nextID(tx, nodeSequence)
		if err != nil {
			return err
		}
		now := time.Now()
		n.ID = id
		n.State = types.NodeStateActive
		n.CreatedAt = now
		n.UpdatedAt = now
		return txr.Create(ns, idName(id), n)
	})
}

// Get returns a node of a cluster.
func (r *NodeRepo) Get(ctx context.Context, clusterID, id int64) (*types.Node, error) {
	return r.base.Get(ctx, ClusterNamespace(clusterID), idName(id))
}

// ListByCluster returns the nodes of a cluster ordered by hostname.
func (r *NodeRepo) ListByCluster(ctx context.Context, clusterID int64, includeRemoved bool) ([]*types.Node, error) {
	nodes, err := r.base.List(ctx, ClusterNamespace(clusterID))
	if err != nil {
		return nil, err
	}
	return selectNodes(nodes, includeRemoved), nil
}

// MissingIDs returns, in ascending order, the ids that do not name an active
// node of the cluster.
func (r *NodeRepo) MissingIDs(ctx context.Context, clusterID int64, ids []int64) ([]int64, error) {
	nodes, err := r.ListByCluster(ctx, clusterID, false)
	if err != nil {
		return nil, err
	}
	return missingIDs(nodes, ids), nil
}

// GetByIDs returns the active nodes of a cluster among ids, keyed by id.
func (r *NodeRepo) GetByIDs(ctx context.Context, clusterID int64, ids []int64) (map[int64]*types.Node, error) {
	nodes, err := r.ListByCluster(ctx, clusterID, false)
	if err != nil {
		return nil, err
	}
	return nodesByID(nodes, ids), nil
}

// WithTx binds the repository to tx.
func (r *NodeRepo) WithTx(tx store.Transaction) *NodeTx {
	return &NodeTx{tx: r.base.Tx(tx)}
}

// NodeTx is a NodeRepo bound to an open transaction.
type NodeTx struct {
	tx *TxRepo[types.Node]
}

func (r *NodeTx) ListByCluster(clusterID int64, includeRemoved bool) ([]*types.Node, error) {
	nodes, err := r.tx.List(ClusterNamespace(clusterID))
	if err != nil {
		return nil, err
	}
	return selectNodes(nodes, includeRemoved), nil
}

func (r *NodeTx) MissingIDs(clusterID int64, ids []int64) ([]int64, error) {
	nodes, err := r.ListByCluster(clusterID, false)
	if err != nil {
		return nil, err
	}
	return missingIDs(nodes, ids), nil
}

func (r *NodeTx) GetByIDs(clusterID int64, ids []int64) (map[int64]*types.Node, error) {
	nodes, err := r.ListByCluster(clusterID, false)
	if err != nil {
		return nil, err
	}
	return nodesByID(nodes, ids), nil
}

func selectNodes(nodes []*types.Node, includeRemoved bool) []*types.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if includeRemoved || n.IsActive() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

func missingIDs(active []*types.Node, ids []int64) []int64 {
	found := nodesByID(active, ids)
	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok && !seen[id] {
			missing = append(missing, id)
		}
		seen[id] = true
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func nodesByID(nodes []*types.Node, ids []int64) map[int64]*types.Node {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]*types.Node, len(ids))
	for _, n := range nodes {
		if want[n.ID] {
			out[n.ID] = n
		}
	}
	return out
}

// MarkRemoved flags a node as removed. The record is kept.
func (r *NodeRepo) MarkRemoved(ctx context.Context, clusterID, id int64) (*types.Node, error) {
	var out *types.Node
	err := r.base.Core().Transaction(ctx, func(tx store.Transaction) error {
		txr := r.base.Tx(tx)
		n, err := txr.Get(ClusterNamespace(clusterID), idName(id))
		if err != nil {
			return err
		}
		n.State = types.NodeStateRemoved
		n.UpdatedAt = time.Now()
		out = n
		return txr.Update(ClusterNamespace(clusterID), idName(id), n)
	})
	return out, err
}
