package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/types"
)

func newComponentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "component",
		Aliases: []string{"components", "comp"},
		Short:   "Place components on nodes and inspect placements",
	}
	cmd.AddCommand(
		newComponentIntentCmd(a, "select", types.StateSelected),
		newComponentIntentCmd(a, "unselect", types.StateUnselected),
		newComponentListCmd(a),
		newComponentInstancesCmd(a),
		newComponentSwitchCmd(a),
	)
	return cmd
}

// batchFile is the YAML form of a component selection batch. Nodes are
// hostnames or IDs.
type batchFile struct {
	Cluster    string       `yaml:"cluster"`
	Components []batchEntry `yaml:"components"`
}

type batchEntry struct {
	Service   string   `yaml:"service"`
	Component string   `yaml:"component"`
	Intent    string   `yaml:"intent"`
	Nodes     []string `yaml:"nodes"`
}

func readBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var b batchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, types.WrapValidationError(err, "invalid batch file %s", path)
	}
	return &b, nil
}

// request converts the batch into a selection request for cluster.
func (a *app) request(ctx context.Context, cluster *types.Cluster, b *batchFile, defaultIntent types.State) (*types.ComponentSelectRequest, error) {
	req := &types.ComponentSelectRequest{ClusterID: cluster.ID}
	for _, e := range b.Components {
		intent := defaultIntent
		if e.Intent != "" {
			st, err := types.ParseState(e.Intent)
			if err != nil {
				return nil, types.WrapValidationError(err, "component %s", e.Component)
			}
			intent = st
		}
		ids, err := a.nodeIDs(ctx, cluster.ID, e.Nodes)
		if err != nil {
			return nil, err
		}
		req.Components = append(req.Components, types.ComponentSelection{
			ServiceName:   strings.ToUpper(e.Service),
			ComponentName: strings.ToUpper(e.Component),
			Intent:        intent,
			NodeIDs:       ids,
		})
	}
	return req, nil
}

func newComponentIntentCmd(a *app, use string, intent types.State) *cobra.Command {
	var (
		clusterRef string
		entry      batchEntry
		file       string
	)
	c := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Mark components as %s on nodes of a cluster", intent),
		Long: fmt.Sprintf(`Mark components as %s on nodes of a cluster. A batch file applies
several components atomically: either every entry is accepted or none is.

For example:
  placer component %s --cluster spark-prod --service KAFKA --component KAFKA_BROKER --nodes kafka-1,kafka-2,kafka-3
  placer component %s --cluster spark-prod -f batch.yaml

Batch file:
  cluster: spark-prod
  components:
    - service: KAFKA
      component: KAFKA_BROKER
      nodes: [kafka-1, kafka-2, kafka-3]`, intent, use, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}

			batch := &batchFile{Cluster: clusterRef}
			if file != "" {
				if batch, err = readBatchFile(file); err != nil {
					return err
				}
				if clusterRef != "" {
					batch.Cluster = clusterRef
				}
			} else {
				if entry.Service == "" || entry.Component == "" {
					return types.NewValidationError("--service and --component are required without --file")
				}
				batch.Components = []batchEntry{entry}
			}

			cluster, err := a.cluster(ctx, batch.Cluster)
			if err != nil {
				return err
			}
			req, err := a.request(ctx, cluster, batch, intent)
			if err != nil {
				return err
			}

			result, err := svc.SelectComponents(ctx, req)
			if err != nil {
				return err
			}
			if msg := successf(a, "%s %d instances written, %d pruned in %s\n",
				format.Success("✓"), len(result.Written), result.Pruned, cluster.Name); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, result, nil)
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().StringVarP(&entry.Service, "service", "s", "", "service owning the component")
	c.Flags().StringVar(&entry.Component, "component", "", "component name")
	c.Flags().StringSliceVar(&entry.Nodes, "nodes", nil, "node hostnames or IDs")
	c.Flags().StringVarP(&file, "file", "f", "", "YAML batch file")
	return c
}

func newComponentListCmd(a *app) *cobra.Command {
	var clusterRef string
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Summarize the components of the selected services of a cluster",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			view, err := svc.ListComponents(ctx, cluster.ID)
			if err != nil {
				return err
			}
			return a.render(cmd, view, func() [][]string {
				fmt.Fprintln(cmd.OutOrStdout(), format.Label("Catalog", view.Version))
				return viewRows(view)
			})
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	return c
}

func newComponentInstancesCmd(a *app) *cobra.Command {
	var clusterRef, service, node string
	c := &cobra.Command{
		Use:   "instances",
		Short: "List the live component instances of a service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			service = strings.ToUpper(service)

			var instances []*types.ComponentInstance
			if node != "" {
				ids, err := a.nodeIDs(ctx, cluster.ID, []string{node})
				if err != nil {
					return err
				}
				instances, err = svc.ListServiceComponentsOnNode(ctx, cluster.ID, ids[0], service)
				if err != nil {
					return err
				}
			} else if instances, err = svc.ListServiceComponents(ctx, cluster.ID, service); err != nil {
				return err
			}

			hosts, err := a.hostnames(ctx, cluster.ID)
			if err != nil {
				return err
			}
			return a.render(cmd, instances, func() [][]string { return instanceRows(instances, hosts) })
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().StringVarP(&service, "service", "s", "", "service name")
	c.Flags().StringVar(&node, "node", "", "restrict to one node (hostname or ID)")
	_ = c.MarkFlagRequired("service")
	return c
}

func newComponentSwitchCmd(a *app) *cobra.Command {
	var (
		clusterRef, service, component, node string
		state                                types.State
	)
	c := &cobra.Command{
		Use:   "switch",
		Short: "Record the state reported for one component instance",
		Long: `Record the state reported by the deployment executor for one live
component instance, e.g. DEPLOYED after installation or REMOVED after teardown.

For example:
  placer component switch --cluster spark-prod --service KAFKA --component KAFKA_BROKER --node kafka-1 --state DEPLOYED`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, err := a.svc(cmd)
			if err != nil {
				return err
			}
			cluster, err := a.cluster(ctx, clusterRef)
			if err != nil {
				return err
			}
			ids, err := a.nodeIDs(ctx, cluster.ID, []string{node})
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return types.NewValidationError("--node is required")
			}

			row, err := svc.SwitchComponentState(ctx, types.InstanceIdentity{
				ClusterID:     cluster.ID,
				NodeID:        ids[0],
				ServiceName:   strings.ToUpper(service),
				ComponentName: strings.ToUpper(component),
			}, state)
			if err != nil {
				return err
			}
			if msg := successf(a, "%s %s on %s is %s\n", format.Success("✓"), row.ComponentName, node, format.StateLabel(row.State)); msg != "" {
				fmt.Fprint(cmd.OutOrStdout(), msg)
				return nil
			}
			return a.render(cmd, row, nil)
		},
	}
	c.Flags().StringVarP(&clusterRef, "cluster", "c", "", "cluster name or ID")
	c.Flags().StringVarP(&service, "service", "s", "", "service name")
	c.Flags().StringVar(&component, "component", "", "component name")
	c.Flags().StringVar(&node, "node", "", "node hostname or ID")
	c.Flags().Var(newStateValue(types.StateDeployed, &state), "state",
		"state to record: "+stateNames(types.StateSelected, types.StateSelectedAddition, types.StateDeployed, types.StateRemoved))
	_ = c.MarkFlagRequired("component")
	return c
}
