package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/types"
)

// render writes v in the selected output format. rows supplies the table
// form, header row first. Values without a table form print as YAML.
func (a *app) render(cmd *cobra.Command, v interface{}, rows func() [][]string) error {
	out := cmd.OutOrStdout()
	output := strings.ToLower(a.output)
	if rows == nil && (output == "table" || output == "") {
		output = "yaml"
	}
	switch output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return enc.Close()
	case "table", "":
		return renderTable(out, rows())
	default:
		return fmt.Errorf("unsupported output format: %s", a.output)
	}
}

func newTable() *pterm.TablePrinter {
	return pterm.DefaultTable.
		WithHasHeader(true).
		WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold))
}

func renderTable(out io.Writer, rows [][]string) error {
	if len(rows) <= 1 {
		fmt.Fprintln(out, "No resources found")
		return nil
	}
	s, err := newTable().WithData(rows).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, s)
	return nil
}

func clusterRows(clusters []*types.Cluster) [][]string {
	byID := make(map[int64]string, len(clusters))
	for _, c := range clusters {
		byID[c.ID] = c.Name
	}

	rows := [][]string{{"ID", "NAME", "TYPE", "RELATIVE", "AGE"}}
	for _, c := range clusters {
		relative := "-"
		if c.RelativeClusterID != 0 {
			relative = byID[c.RelativeClusterID]
			if relative == "" {
				relative = fmt.Sprintf("#%d", c.RelativeClusterID)
			}
		}
		rows = append(rows, []string{fmt.Sprint(c.ID), c.Name, string(c.Type), relative, formatAge(c.CreatedAt)})
	}
	return rows
}

func nodeRows(nodes []*types.Node) [][]string {
	rows := [][]string{{"ID", "HOSTNAME", "IPV4", "STATE", "RAM", "CORES", "AGE"}}
	for _, n := range nodes {
		rows = append(rows, []string{
			fmt.Sprint(n.ID),
			n.Hostname,
			n.IPv4,
			format.NodeStateLabel(n.State),
			types.FormatMemoryMB(n.RAM),
			fmt.Sprint(n.CPUCores),
			formatAge(n.CreatedAt),
		})
	}
	return rows
}

func instanceRows(instances []*types.ComponentInstance, hostnames map[int64]string) [][]string {
	rows := [][]string{{"SERVICE", "COMPONENT", "NODE", "STATE", "ID", "UPDATED"}}
	for _, c := range instances {
		node := hostnames[c.NodeID]
		if node == "" {
			node = fmt.Sprintf("#%d", c.NodeID)
		}
		rows = append(rows, []string{
			c.ServiceName,
			c.ComponentName,
			node,
			format.StateLabel(c.State),
			shortID(c.ID),
			formatAge(c.UpdatedAt),
		})
	}
	return rows
}

func selectionRows(selections []*types.ServiceSelection) [][]string {
	rows := [][]string{{"SERVICE", "STATE", "PRIORITY"}}
	for _, s := range selections {
		rows = append(rows, []string{s.ServiceName, format.StateLabel(s.State), fmt.Sprint(s.Priority)})
	}
	return rows
}

// viewRows flattens a component summary into one row per component.
func viewRows(view *types.ComponentView) [][]string {
	rows := [][]string{{"SERVICE", "STATE", "COMPONENT", "MIN", "MAX", "MUTEX", "NODES"}}
	for _, svc := range view.Services {
		for i, comp := range svc.Components {
			service, state := "", ""
			if i == 0 {
				service, state = svc.Name, format.StateLabel(svc.State)
			}
			rows = append(rows, []string{
				service,
				state,
				comp.Name,
				fmt.Sprint(comp.Min),
				format.Bound(comp.Max),
				orDash(strings.Join(comp.Mutexes, ",")),
				orDash(placementList(comp.Nodes)),
			})
		}
	}
	return rows
}

func dependencyRows(deps *types.ServiceDependencies) [][]string {
	rows := [][]string{{"SERVICE", "TYPE", "PRIORITY", "CLUSTER", "STATE", "COMPONENTS"}}
	for _, svc := range deps.Services {
		state := format.StateLabel(svc.State)
		if svc.Inconsistent {
			state += format.Warning(" (inconsistent)")
		}

		byComponent := make(map[string][]string)
		var names []string
		for _, p := range svc.Components {
			if _, ok := byComponent[p.ComponentName]; !ok {
				names = append(names, p.ComponentName)
			}
			byComponent[p.ComponentName] = append(byComponent[p.ComponentName], p.Hostname)
		}
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s[%s]", name, strings.Join(byComponent[name], ",")))
		}

		rows = append(rows, []string{
			svc.ServiceName,
			string(svc.Type),
			fmt.Sprint(svc.Priority),
			orDash(svc.Cluster.Name),
			state,
			orDash(strings.Join(parts, " ")),
		})
	}
	return rows
}

func catalogRows(services []*types.ServiceDefinition, components func(string) []*types.ComponentDefinition) [][]string {
	rows := [][]string{{"SERVICE", "TYPE", "PRIORITY", "DEPENDS ON", "COMPONENT", "MIN", "MAX", "MUTEX"}}
	for _, svc := range services {
		comps := components(svc.Name)
		if len(comps) == 0 {
			rows = append(rows, []string{svc.Name, string(svc.Type), fmt.Sprint(svc.Priority), orDash(strings.Join(svc.Dependencies, ",")), "-", "", "", ""})
			continue
		}
		for i, c := range comps {
			row := []string{"", "", "", ""}
			if i == 0 {
				row = []string{svc.Name, string(svc.Type), fmt.Sprint(svc.Priority), orDash(strings.Join(svc.Dependencies, ","))}
			}
			rows = append(rows, append(row, c.Name, fmt.Sprint(c.Min), format.Bound(c.Max), orDash(strings.Join(c.Mutexes, ","))))
		}
	}
	return rows
}

func propertyRows(props []types.Property) [][]string {
	rows := [][]string{{"FILE", "KEY", "VALUE"}}
	sorted := append([]types.Property(nil), props...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })
	for _, p := range sorted {
		rows = append(rows, []string{orDash(p.File), p.Key, p.Value})
	}
	return rows
}

func placementList(nodes []types.PlacementNode) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.Hostname
		if n.State != types.StateDeployed {
			parts[i] += "(" + strings.ToLower(string(n.State)) + ")"
		}
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatAge formats a time.Time as a human-readable age string
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}

	duration := time.Since(t)
	switch {
	case duration < time.Minute:
		return "Just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh", int(duration.Hours()))
	case duration < 365*24*time.Hour:
		return fmt.Sprintf("%dd", int(duration.Hours()/24))
	}
	return fmt.Sprintf("%dy", int(duration.Hours()/24/365))
}
