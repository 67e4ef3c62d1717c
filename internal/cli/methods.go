package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// MethodInfo describes one registered method.
type MethodInfo struct {
	Name     string `json:"name"`
	Call     string `json:"call"`
	Response string `json:"response"`
}

// NewMethodsCommand creates the methods command.
func NewMethodsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "methods",
		Short:         "List registered methods",
		Long:          "List every registered method name with its call and response types.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethods(rootOpts, cmd)
		},
	}
}

func runMethods(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	entries := opts.registry().Entries()
	infos := make([]MethodInfo, len(entries))
	for i, e := range entries {
		infos[i] = MethodInfo{Name: e.Name, Call: e.Call.String(), Response: e.Response.String()}
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tCALL\tRESPONSE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Call, info.Response)
	}
	return tw.Flush()
}
