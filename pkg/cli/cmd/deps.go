package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/cli/format"
)

func newDepsCmd(a *app) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:   "deps <service>",
		Short: "Resolve the dependency closure of a service",
		Long: `Resolve a service and its dependencies in deployment order. Storage
services of a COMPUTE cluster resolve against its relative storage cluster.

For example:
  placer deps HIVE --cluster spark-prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			deps, err := svc.ResolveDependencies(ctx, cluster.ID, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			return a.render(cmd, deps, func() [][]string {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, format.Label("Cluster", fmt.Sprintf("%s (%s)", deps.Cluster.Current.Name, deps.Cluster.Current.Type)))
				if rel := deps.Cluster.Relative; rel != nil {
					fmt.Fprintln(out, format.Label("Relative", fmt.Sprintf("%s (%s)", rel.Name, rel.Type)))
				}
				return dependencyRows(deps)
			})
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}
