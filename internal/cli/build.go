package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Account string // default accountId
	Output  string // output file path
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <batch-file>",
		Short: "Build a batch file into a canonical JMAP request",
		Long: `Build a YAML or CUE batch file into a JMAP request.

Calls are checked against their registered shapes, client ids are
assigned and references are validated before the canonical request
JSON is printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Account, "account", "a", "", "accountId for calls that omit one")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runBuild(opts *BuildOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	req, err := loadAndBuild(formatter, opts.registry(), path, opts.Account)
	if err != nil {
		return err
	}

	body, err := req.MarshalJSON()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(body, '\n'), 0o644); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("writing output file: %v", err), nil)
		}
		formatter.VerboseLog("Wrote request to %s", opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(json.RawMessage(body))
	}
	fmt.Fprintln(formatter.Writer, string(body))
	return nil
}

// loadAndBuild loads path and builds it, reporting failures through f.
func loadAndBuild(f *OutputFormatter, r *method.Registry, path, account string) (*request.Request, error) {
	batch, err := LoadBatchFile(path)
	if err != nil {
		return nil, outputLoadError(f, err)
	}
	f.VerboseLog("Loaded %d call(s) from %s", len(batch.Calls), path)

	req, err := BuildRequest(batch, r, account)
	if err != nil {
		return nil, outputLoadError(f, err)
	}
	for _, inv := range req.Invocations() {
		f.VerboseLog("  %s %s", inv.ClientID(), inv.Name())
	}
	return req, nil
}

func outputLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		var details any
		if le.Pos.IsValid() {
			details = map[string]any{"file": le.Pos.Filename(), "line": le.Pos.Line(), "column": le.Pos.Column()}
		}
		return f.fail(ExitCommandError, le.Code, err.Error(), details)
	}

	var be *request.BuildError
	if errors.As(err, &be) {
		return f.fail(ExitCommandError, ErrCodeBuildFailed, err.Error(), map[string]any{"code": string(be.Code)})
	}
	if method.IsUnknownMethod(err) {
		return f.fail(ExitCommandError, ErrCodeUnknownMethod, err.Error(), nil)
	}
	return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
