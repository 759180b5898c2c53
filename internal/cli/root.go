// Package cli implements signctl, the operator command line for signflow.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"signflow/internal/workflow"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// Backend is what the subcommands act on.
type Backend struct {
	// Reconciler is nil unless the backend was opened with Engine set.
	Reconciler workflow.Reconciler
	Migrate    func(ctx context.Context) error
	Migrated   func(ctx context.Context) (bool, error)
	Close      func() error
}

// OpenOptions tells an Opener how much to build.
type OpenOptions struct {
	Engine  bool
	Verbose bool
}

// Opener builds a Backend from the process configuration.
type Opener func(ctx context.Context, opts OpenOptions) (*Backend, error)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose bool
	Format  string
	open    Opener
}

func (o *RootOptions) output(cmd *cobra.Command) output {
	return output{format: o.Format, w: cmd.OutOrStdout()}
}

func (o *RootOptions) backend(ctx context.Context, engine bool) (*Backend, error) {
	b, err := o.open(ctx, OpenOptions{Engine: engine, Verbose: o.Verbose})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open backend", err)
	}
	if engine && b.Reconciler == nil {
		b.close()
		return nil, WrapExitError(ExitCommandError, "open backend", fmt.Errorf("reconciler not configured"))
	}
	return b, nil
}

func (b *Backend) close() {
	if b.Close != nil {
		_ = b.Close()
	}
}

// NewRootCommand creates signctl with its subcommands.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "signctl",
		Short: "Operate the signflow signature service",
		Long:  "signctl migrates the signflow schema and replays DocuSign status updates against it.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}
