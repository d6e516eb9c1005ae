package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/version"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the placer version information",
		Long:  `Display build information of the placer binary and the version of the configured catalog.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get("")
			if cat, err := a.loadCatalog(); err == nil {
				info.CatalogVersion = cat.Version()
			}
			if a.output == "table" || a.output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			return a.render(cmd, info, nil)
		},
	}
}
