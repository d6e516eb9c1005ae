package repos

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

const clusterSequence = "clusters"

// ClusterRepo persists clusters in the system namespace.
type ClusterRepo struct {
	base *BaseRepo[types.Cluster]
}

func NewClusterRepo(core store.Store) *ClusterRepo {
	return &ClusterRepo{base: NewBaseRepo[types.Cluster](core, types.ResourceTypeCluster)}
}

// Create assigns an ID and stores the cluster. Names are unique and a
// relative cluster must be an existing STORAGE cluster.
func (r *ClusterRepo) Create(ctx context.Context, c *types.Cluster) error {
	if c == nil {
		return fmt.Errorf("invalid cluster")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	return r.base.Core().Transaction(ctx, func(tx store.Transaction) error {
		txr := r.base.Tx(tx)

		existing, err := txr.List(types.SystemNamespace)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if strings.EqualFold(e.Name, c.Name) {
				return types.NewValidationErrorf("cluster %s already exists", c.Name)
			}
		}

		if c.RelativeClusterID != 0 {
			rel, err := txr.Get(types.SystemNamespace, idName(c.RelativeClusterID))
			if store.IsNotFoundError(err) {
				return types.NewValidationErrorf("relative cluster %d does not exist", c.RelativeClusterID)
			} else if err != nil {
				return err
			}
			if rel.Type != types.ClusterTypeStorage {
				return types.NewValidationErrorf("relative cluster %s is %s, expected %s", rel.Name, rel.Type, types.ClusterTypeStorage)
			}
		}

		id, err := nextID(tx, clusterSequence)
		if err != nil {
			return err
		}
		now := time.Now()
		c.ID = id
		c.CreatedAt = now
		c.UpdatedAt = now
		return txr.Create(types.SystemNamespace, idName(id), c)
	})
}

// Get returns a cluster by ID.
func (r *ClusterRepo) Get(ctx context.Context, id int64) (*types.Cluster, error) {
	return r.base.Get(ctx, types.SystemNamespace, idName(id))
}

// GetByName returns a cluster by name, case-insensitively.
func (r *ClusterRepo) GetByName(ctx context.Context, name string) (*types.Cluster, error) {
	clusters, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clusters {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("resource %s/%s/%s %w", types.ResourceTypeCluster, types.SystemNamespace, name, store.ErrNotFound)
}

// Resolve looks a cluster up by numeric ID or by name.
func (r *ClusterRepo) Resolve(ctx context.Context, ref string) (*types.Cluster, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return r.Get(ctx, id)
	}
	return r.GetByName(ctx, ref)
}

// List returns every cluster ordered by ID.
func (r *ClusterRepo) List(ctx context.Context) ([]*types.Cluster, error) {
	clusters, err := r.base.List(ctx, types.SystemNamespace)
	if err != nil {
		return nil, err
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters, nil
}

// WithTx binds the repository to tx.
func (r *ClusterRepo) WithTx(tx store.Transaction) *ClusterTx {
	return &ClusterTx{tx: r.base.Tx(tx)}
}

// ClusterTx is a ClusterRepo bound to an open transaction.
type ClusterTx struct {
	tx *TxRepo[types.Cluster]
}

// Get returns a cluster by ID.
func (r *ClusterTx) Get(id int64) (*types.Cluster, error) {
	return r.tx.Get(types.SystemNamespace, idName(id))
}

// List returns every cluster ordered by ID.
func (r *ClusterTx) List() ([]*types.Cluster, error) {
	clusters, err := r.tx.List(types.SystemNamespace)
	if err != nil {
		return nil, err
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters, nil
}
