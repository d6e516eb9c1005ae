package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// cluster resolves a cluster by name or numeric ID.
func (a *app) cluster(ctx context.Context, ref string) (*types.Cluster, error) {
	if ref == "" {
		return nil, types.NewValidationError("a cluster is required, use --cluster")
	}
	c, err := a.repos.Clusters.Resolve(ctx, ref)
	if store.IsNotFoundError(err) {
		return nil, types.NewNotFoundError("cluster", ref)
	}
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to look up cluster %s", ref)
	}
	return c, nil
}

// nodeIDs resolves node references, given as IDs or hostnames, against the
// active nodes of a cluster. Unknown numeric IDs are passed through so that
// placement validation reports them.
func (a *app) nodeIDs(ctx context.Context, clusterID int64, refs []string) ([]int64, error) {
	nodes, err := a.repos.Nodes.ListByCluster(ctx, clusterID, false)
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to list nodes")
	}
	byHost := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		byHost[strings.ToLower(n.Hostname)] = n.ID
	}

	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, ok := byHost[strings.ToLower(ref)]; ok {
			ids = append(ids, id)
			continue
		}
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return nil, types.NewValidationErrorf("node %s does not exist", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// hostnames maps node IDs of a cluster to hostnames, removed nodes included.
func (a *app) hostnames(ctx context.Context, clusterID int64) (map[int64]string, error) {
	nodes, err := a.repos.Nodes.ListByCluster(ctx, clusterID, true)
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to list nodes")
	}
	out := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n.Hostname
	}
	return out, nil
}

// successf formats a confirmation line, or returns "" when structured output
// was requested.
func successf(a *app, format string, args ...interface{}) string {
	if o := strings.ToLower(a.output); o != "table" && o != "" {
		return ""
	}
	return fmt.Sprintf(format, args...)
}
