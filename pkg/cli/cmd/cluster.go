package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/types"
)

func newClusterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cluster",
		Aliases: []string{"clusters"},
		Short:   "Manage clusters",
	}
	cmd.AddCommand(newClusterCreateCmd(a), newClusterListCmd(a))
	return cmd
}

func newClusterCreateCmd(a *app) *cobra.Command {
	var (
		clusterType types.ClusterType
		relative    string
	)
	c := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a cluster",
		Long: `Create a cluster. COMPUTE clusters may name a STORAGE cluster with
--relative; storage services of the compute cluster then resolve there.

For example:
  placer cluster create hdfs-prod --type STORAGE
  placer cluster create spark-prod --type COMPUTE --relative hdfs-prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			ctx := cmd.Context()

			cluster := &types.Cluster{Name: args[0], Type: clusterType}
			if relative != "" {
				rel, err := a.cluster(ctx, relative)
				if err != nil {
					return err
				}
				cluster.RelativeClusterID = rel.ID
			}
			if err := a.repos.Clusters.Create(ctx, cluster); err != nil {
				return types.WrapStorageError(err, "failed to create cluster %s", cluster.Name)
			}

			if msg := successf(a, "Cluster %s created with ID %d\n", format.Highlight(cluster.Name), cluster.ID); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, cluster, nil)
		},
	}
	c.Flags().Var(newClusterTypeValue(types.ClusterTypeMixed, &clusterType), "type", "cluster type: COMPUTE, STORAGE or MIXED")
	c.Flags().StringVar(&relative, "relative", "", "relative STORAGE cluster of a COMPUTE cluster")
	return c
}

func newClusterListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List clusters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			clusters, err := a.repos.Clusters.List(cmd.Context())
			if err != nil {
				return types.WrapStorageError(err, "failed to list clusters")
			}
			return a.render(cmd, clusters, func() [][]string { return clusterRows(clusters) })
		},
	}
}
