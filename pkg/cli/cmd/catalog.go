package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/types"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate service catalogs",
	}
	cmd.AddCommand(newCatalogShowCmd(a), newCatalogValidateCmd(a))
	return cmd
}

type catalogOutput struct {
	Version  string           `json:"version" yaml:"version"`
	Services []catalogService `json:"services" yaml:"services"`
}

type catalogService struct {
	types.ServiceDefinition `yaml:",inline"`
	Definitions             []*types.ComponentDefinition `json:"componentDefinitions" yaml:"componentDefinitions"`
}

func newCatalogShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured service catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}

			out := catalogOutput{Version: cat.Version()}
			for _, svc := range cat.Services() {
				out.Services = append(out.Services, catalogService{
					ServiceDefinition: *svc,
					Definitions:       cat.ComponentsByService(svc.Name),
				})
			}
			return a.render(cmd, out, func() [][]string {
				fmt.Fprintln(cmd.OutOrStdout(), format.Label("Catalog", cat.Version()))
				return catalogRows(cat.Services(), cat.ComponentsByService)
			})
		},
	}
}

func newCatalogValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a manifest file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid: catalog %s, %d services\n",
				format.Success("✓"), args[0], cat.Version(), len(cat.Services()))
			return nil
		},
	}
}
