package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/types"
)

func newServiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "service",
		Aliases: []string{"services", "svc"},
		Short:   "Select services of a cluster and inspect their state",
	}
	cmd.AddCommand(
		newServiceIntentCmd(a, "select", types.StateSelected),
		newServiceIntentCmd(a, "unselect", types.StateUnselected),
		newServiceListCmd(a),
		newServiceStateCmd(a),
		newServicePropsCmd(a),
	)
	return cmd
}

func newServiceIntentCmd(a *app, use string, intent types.State) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:   use + " <service>...",
		Short: fmt.Sprintf("Mark services as %s in a cluster", intent),
		Long: fmt.Sprintf(`Mark services as %s in a cluster. All services are applied as one batch.

For example:
  placer service %s ZOOKEEPER KAFKA --cluster spark-prod`, intent, use),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}

			req := &types.ServiceSelectRequest{ClusterID: cluster.ID}
			for _, name := range args {
				req.Services = append(req.Services, types.ServiceIntent{ServiceName: strings.ToUpper(name), Intent: intent})
			}
			written, err := svc.SelectServices(ctx, req)
			if err != nil {
				return err
			}

			if msg := successf(a, "%s %s in %s\n", format.Success("✓"), strings.Join(args, ", "), cluster.Name); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, written, nil)
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}

func newServiceListCmd(a *app) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the recorded service selections of a cluster",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			selections, err := a.repos.Selections.List(ctx, cluster.ID)
			if err != nil {
				return types.WrapStorageError(err, "failed to list selections")
			}
			return a.render(cmd, selections, func() [][]string { return selectionRows(selections) })
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}

type serviceStateOutput struct {
	Cluster string      `json:"cluster" yaml:"cluster"`
	Service string      `json:"service" yaml:"service"`
	State   types.State `json:"state" yaml:"state"`
}

func newServiceStateCmd(a *app) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:   "state <service>",
		Short: "Show the state of a service in a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			name := strings.ToUpper(args[0])
			state, err := svc.ServiceState(ctx, cluster.ID, name)
			if err != nil {
				return err
			}

			out := serviceStateOutput{Cluster: cluster.Name, Service: name, State: state}
			return a.render(cmd, out, func() [][]string {
				return [][]string{{"CLUSTER", "SERVICE", "STATE"}, {out.Cluster, out.Service, format.StateLabel(state)}}
			})
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}

func newServicePropsCmd(a *app) *cobra.Command {
	var (
		clusterRef string
		file       string
		set        []string
		reset      bool
	)
	c := &cobra.Command{
		Use:   "props <service>",
		Short: "Show or override the preconfigured properties of a service",
		Long: `Show the effective preconfigured properties of a service: catalog defaults
overlaid with the cluster's overrides. --set stores overrides.

For example:
  placer service props HDFS --cluster hdfs-prod
  placer service props HDFS --cluster hdfs-prod --file hdfs-site.xml --set dfs.replication=2`,
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
			name := strings.ToUpper(args[0])
			if _, ok := svc.Catalog().ServiceByName(name); !ok {
				return types.NewNotFoundError("service", name)
			}

			if reset || len(set) > 0 {
				overrides, err := a.repos.Properties.Get(ctx, cluster.ID, name)
				if err != nil {
					return types.WrapStorageError(err, "failed to load properties of %s", name)
				}
				if reset {
					overrides.Properties = nil
				}
				for _, kv := range set {
					key, value, ok := strings.Cut(kv, "=")
					if !ok || key == "" {
						return types.NewValidationErrorf("invalid property %q, expected key=value", kv)
					}
					overrides.Properties = upsertProperty(overrides.Properties, types.Property{Key: key, Value: value, File: file})
				}
				if err := a.repos.Properties.Set(ctx, overrides); err != nil {
					return types.WrapStorageError(err, "failed to store properties of %s", name)
				}
			}

			props, err := a.conf.Properties(ctx, cluster.ID, name)
			if err != nil {
				return err
			}
			return a.render(cmd, props, func() [][]string { return propertyRows(props) })
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().StringVar(&file, "file", "", "configuration file the overrides are rendered into")
	c.Flags().StringArrayVar(&set, "set", nil, "override a property, key=value (repeatable)")
	c.Flags().BoolVar(&reset, "reset", false, "drop every stored override first")
	return c
}

func upsertProperty(props []types.Property, p types.Property) []types.Property {
	for i := range props {
		if props[i].Key == p.Key && props[i].File == p.File {
			props[i].Value = p.Value
			return props
		}
	}
	return append(props, p)
}
