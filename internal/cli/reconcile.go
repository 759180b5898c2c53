package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"signflow/internal/event"
	"signflow/internal/workflow"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Event string
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <signer-id>",
		Short: "Pull a signer's status from DocuSign and apply it",
		Long: `Query DocuSign for the current status of one signer and apply it, exactly as
when the signer returns from the signing page. Use it when a return was lost.

Examples:
  signctl reconcile 6f1c2b0e-3c1d-4c43-9a0b-1d3e2f4a5b6c
  signctl reconcile 6f1c2b0e-3c1d-4c43-9a0b-1d3e2f4a5b6c --event cancel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "signing_complete", "provider return event to simulate")
	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command, signerID string) error {
	ctx := cmd.Context()
	out := opts.output(cmd)

	b, err := opts.backend(ctx, true)
	if err != nil {
		return err
	}
	defer b.close()

	outcome, err := b.Reconciler.HandleSignerReturn(ctx, signerID, url.Values{"event": {opts.Event}})
	if err != nil {
		_ = out.failure(outcome, err)
		return WrapExitError(exitCodeFor(err), "reconcile "+signerID, err)
	}

	text := fmt.Sprintf("signer %s: %s", signerID, outcome.Kind)
	if outcome.Status != "" {
		text += fmt.Sprintf(" (status %s)", outcome.Status)
	}
	if outcome.Message != "" {
		text += ": " + outcome.Message
	}
	return out.success(outcome, text)
}

// exitCodeFor separates rejected updates from infrastructure failures.
func exitCodeFor(err error) int {
	if errors.Is(err, workflow.ErrInconsistentState) || errors.Is(err, event.ErrParse) {
		return ExitFailure
	}
	return ExitCommandError
}
