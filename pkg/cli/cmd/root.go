// Package cmd implements the placer command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rzbill/placer/pkg/cli/format"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/version"
)

// newRootCmd builds the placer command tree.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "placer",
		Short: "Placer - component placement control plane for big-data clusters",
		Long: `Placer records which services and components of a big-data stack are
selected on which nodes of a cluster, enforces instance bounds and
mutual exclusion, and resolves service dependencies across compute and
storage clusters.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./placer.yaml, $HOME/.placer/placer.yaml or /etc/placer/placer.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(
		newClusterCmd(a),
		newNodeCmd(a),
		newServiceCmd(a),
		newComponentCmd(a),
		newDepsCmd(a),
		newCatalogCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return rootCmd, a
}

// run executes the command tree and releases the store whether or not the
// command succeeded.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx = log.ContextWithFields(ctx, log.Str(log.RequestIDKey, uuid.NewString()))
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close store: %w", cerr)
	}
	return err
}

// Execute runs the command line and exits with a status derived from the
// error kind.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		format.NewErrorFormatter(os.Stderr).Print(err)
		stop()
		os.Exit(format.ExitCode(err))
	}
}
