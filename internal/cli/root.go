package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the swaggerclient CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swaggerclient",
		Short:         "Call Swagger 2.0 APIs straight from their spec",
		Long:          "swaggerclient loads a Swagger 2.0 document, validates call arguments against it and maps responses back to typed values.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagUsageError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{newOpsCmd(), newCallCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagUsageError)
		cmd.AddCommand(sub)
	}

	return cmd
}

func flagUsageError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
