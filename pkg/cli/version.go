package cli

import (
	"fmt"

	"github.com/getmockd/stubby/pkg/cli/internal/output"
	"github.com/getmockd/stubby/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show stubby version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), info)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "stubby v%s (%s, %s)\n", info.Version, info.Commit, info.Date)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s\n", info.Go, info.OS, info.Arch)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
