package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopURL     string
	stopPIDFile string
	stopTimeout time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running stubby server",
	Long: `Stop a running stubby server by calling POST /_control/shutdown.

The server URL is taken from --url, or else from the PID file written by
'stubby serve'.`,
	Example: `  # Stop the server recorded in the default PID file
  stubby stop

  # Stop a server at a known address
  stubby stop --url http://127.0.0.1:8882`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd.OutOrStdout(), stopURL, stopPIDFile, stopTimeout)
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().StringVar(&stopURL, "url", "", "Base URL of the server (e.g. http://127.0.0.1:8882)")
	stopCmd.Flags().StringVar(&stopPIDFile, "pid-file", DefaultPIDPath(), "Path to PID file")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "Request timeout")
}

func runStop(out io.Writer, baseURL, pidFile string, timeout time.Duration) error {
	if baseURL == "" {
		info, err := ReadPIDFile(pidFile)
		if err != nil {
			return fmt.Errorf("no --url given and %w", err)
		}
		if !info.IsRunning() {
			_ = RemovePIDFile(pidFile)
			return fmt.Errorf("stubby (pid %d) is not running; removed stale PID file", info.PID)
		}
		baseURL = info.URL
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(strings.TrimRight(baseURL, "/")+"/_control/shutdown", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected response %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Fprintf(out, "Shutdown requested for %s\n", baseURL)
	return nil
}
