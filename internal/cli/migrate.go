package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Check bool
}

type migrateResult struct {
	Migrated bool `json:"migrated"`
	Applied  bool `json:"applied"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the signature schema if it is missing",
		Long: `Create the signatures and signers tables on an empty database.

With --check nothing is changed; the command exits 1 when the schema is missing.

Examples:
  signctl migrate
  signctl migrate --check --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "only report whether the schema exists")
	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.output(cmd)

	b, err := opts.backend(ctx, false)
	if err != nil {
		return err
	}
	defer b.close()

	migrated, err := b.Migrated(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "check schema", err)
	}

	if opts.Check {
		res := migrateResult{Migrated: migrated}
		if !migrated {
			_ = out.failure(res, errors.New("schema missing"))
			return &ExitError{Code: ExitFailure, Message: "schema missing"}
		}
		return out.success(res, "schema present")
	}

	if migrated {
		return out.success(migrateResult{Migrated: true}, "schema already present")
	}
	if err := b.Migrate(ctx); err != nil {
		return WrapExitError(ExitCommandError, "migrate", err)
	}
	return out.success(migrateResult{Migrated: true, Applied: true}, "schema created")
}
