package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	KeepGoing bool
}

// ReplayFileResult is the outcome of one replayed notification.
type ReplayFileResult struct {
	File  string `json:"file"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReplayResult summarizes a replay run.
type ReplayResult struct {
	Files   []ReplayFileResult `json:"files"`
	Applied int                `json:"applied"`
	Failed  int                `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <file>...",
		Short: "Apply saved DocuSign Connect notifications",
		Long: `Feed saved Connect payloads (XML or JSON) through the callback pipeline, in
the order given. "-" reads one payload from stdin. Replaying a payload that was
already applied changes nothing.

Exit codes:
  0 - every payload was applied
  1 - at least one payload was rejected
  2 - command error (unreadable file, backend unavailable)

Examples:
  signctl replay connect-env-1.xml connect-env-2.xml
  cat connect.json | signctl replay - --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue after a rejected payload")
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	out := opts.output(cmd)

	payloads := make([][]byte, len(files))
	for i, f := range files {
		raw, err := readPayload(cmd.InOrStdin(), f)
		if err != nil {
			return WrapExitError(ExitCommandError, "read "+f, err)
		}
		payloads[i] = raw
	}

	b, err := opts.backend(ctx, true)
	if err != nil {
		return err
	}
	defer b.close()

	res := ReplayResult{Files: make([]ReplayFileResult, 0, len(files))}
	var firstErr error
	for i, f := range files {
		err := b.Reconciler.HandleCallback(ctx, payloads[i])
		if err == nil {
			res.Applied++
			res.Files = append(res.Files, ReplayFileResult{File: f, OK: true})
			continue
		}
		res.Failed++
		res.Files = append(res.Files, ReplayFileResult{File: f, Error: err.Error()})
		if firstErr == nil {
			firstErr = WrapExitError(exitCodeFor(err), "replay "+f, err)
		}
		if !opts.KeepGoing {
			break
		}
	}

	text := fmt.Sprintf("applied %d, failed %d", res.Applied, res.Failed)
	if firstErr != nil {
		_ = out.failure(res, firstErr)
		return firstErr
	}
	return out.success(res, text)
}

func readPayload(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}
