package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"libsmce-go/toolchain"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the resource directory and build tool",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	tc := toolchain.New(resourcesDir, toolchain.WithLogger(log))
	res := tc.CheckSuitableEnvironment(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", res, res)
	if res != toolchain.Ok {
		return res.Err()
	}
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "tool: %s\n", tc.ToolPath())
	}
	return nil
}
