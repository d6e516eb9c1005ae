package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

func newNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "node",
		Aliases: []string{"nodes"},
		Short:   "Manage the nodes of a cluster",
	}
	cmd.AddCommand(newNodeAddCmd(a), newNodeListCmd(a), newNodeRemoveCmd(a))
	return cmd
}

func newNodeAddCmd(a *app) *cobra.Command {
	var (
		clusterRef string
		ram        string
		node       types.Node
	)
	c := &cobra.Command{
		Use:   "add <hostname>",
		Short: "Add a node to a cluster",
		Long: `Add a node to a cluster.

For example:
  placer node add kafka-1 --cluster spark-prod --ip 10.0.0.11 --ram 64Gi --cores 16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}

			if node.RAM, err = types.ParseMemoryMB(ram); err != nil {
				return err
			}
			node.ClusterID = cluster.ID
			node.Hostname = args[0]
			if err := a.repos.Nodes.Add(ctx, &node); err != nil {
				return types.WrapStorageError(err, "failed to add node %s", node.Hostname)
			}

			if msg := successf(a, "Node %s added to %s with ID %d\n", format.Highlight(node.Hostname), cluster.Name, node.ID); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, &node, nil)
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().StringVar(&node.IPv4, "ip", "", "IPv4 address of the node")
	c.Flags().StringVar(&ram, "ram", "", "RAM, in megabytes or with a unit such as 64Gi")
	c.Flags().Int64Var(&node.CPUCores, "cores", 0, "number of CPU cores")
	_ = c.MarkFlagRequired("ip")
	return c
}

func newNodeListCmd(a *app) *cobra.Command {
	var (
		clusterRef string
		all        bool
	)
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the nodes of a cluster",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			nodes, err := a.repos.Nodes.ListByCluster(ctx, cluster.ID, all)
			if err != nil {
				return types.WrapStorageError(err, "failed to list nodes")
			}
			return a.render(cmd, nodes, func() [][]string { return nodeRows(nodes) })
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().BoolVar(&all, "all", false, "include removed nodes")
	return c
}

func newNodeRemoveCmd(a *app) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:   "remove <node>",
		Short: "Mark a node as removed",
		Long: `Mark a node as removed. The node must not host any placed component;
unselect or remove its components first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			ids, err := a.nodeIDs(ctx, cluster.ID, args)
			if err != nil {
				return err
			}
			id := ids[0]

			hosted, err := a.repos.Components.List(ctx, repos.ComponentQuery{
				ClusterID:     cluster.ID,
				NodeID:        id,
				ExcludeStates: []types.State{types.StateRemoved, types.StateUnselected},
			})
			if err != nil {
				return types.WrapStorageError(err, "failed to list components on node %d", id)
			}
			if len(hosted) > 0 {
				return types.NewValidationErrorf("node %s still hosts %d component instances", args[0], len(hosted)).
					WithDetail("nodes", strconv.FormatInt(id, 10))
			}

			node, err := a.repos.Nodes.MarkRemoved(ctx, cluster.ID, id)
			if store.IsNotFoundError(err) {
				return types.NewNotFoundError("node", args[0])
			} else if err != nil {
				return types.WrapStorageError(err, "failed to remove node %s", args[0])
			}
			if msg := successf(a, "Node %s removed from %s\n", format.Highlight(node.Hostname), cluster.Name); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, node, nil)
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}
