package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
)

// NewEchoCommand creates the echo command.
func NewEchoCommand(rootOpts *RootOptions) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:           "echo",
		Short:         "Check connectivity with Core/echo",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEcho(rootOpts, payload, cmd)
		},
	}
	cmd.Flags().StringVar(&payload, "args", `{"hello":true}`, "arguments to echo (JSON object)")
	return cmd
}

func runEcho(opts *RootOptions, payload string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var args map[string]any
	if err := json.Unmarshal([]byte(payload), &args); err != nil || args == nil {
		return formatter.fail(ExitCommandError, ErrCodeBadArgs, fmt.Sprintf("--args must be a JSON object: %v", err), nil)
	}

	sess, err := openSession(cmd.Context(), opts, formatter, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), sess.cfg.RequestTimeout)
	defer cancel()

	got, err := sess.client.Echo(ctx, args)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeTransport, err.Error(), nil)
	}
	if !reflect.DeepEqual(got, args) {
		return formatter.fail(ExitFailure, ErrCodeMethod, "server echoed different arguments", got)
	}
	return formatter.Success(got)
}
