// Package cli implements the stubby command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// jsonOutput is a persistent flag available to all subcommands.
var jsonOutput bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stubby",
	Short: "stubby is an HTTP stub server for integration tests",
	Long: `stubby serves programmable HTTP stubs.

Stubs are added through the control plane under /_control or loaded from
YAML/JSON files at startup. Every request stubby receives is recorded and
can be queried back, so tests can assert on what their code sent.

Running 'stubby' with no arguments starts the server with defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. With no arguments it runs serve.
func Execute() {
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
