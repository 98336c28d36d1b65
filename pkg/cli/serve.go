package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getmockd/stubby/pkg/cli/internal/output"
	"github.com/getmockd/stubby/pkg/config"
	"github.com/getmockd/stubby/pkg/logging"
	"github.com/getmockd/stubby/pkg/server"
	"github.com/getmockd/stubby/pkg/stub"
	"github.com/getmockd/stubby/pkg/version"
	"github.com/spf13/cobra"
)

// serveFlags holds all parsed command-line flags for the serve command.
type serveFlags struct {
	address      string
	configFile   string
	stubs        []string
	logLevel     string
	logFormat    string
	logFile      string
	drainTimeout time.Duration
	maxRequests  int
	pidFile      string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stub server (default command)",
	Long: `Start the stub server in the foreground.

The server stops on SIGINT/SIGTERM or when POST /_control/shutdown is called.`,
	Example: `  # Start with defaults
  stubby serve

  # Pick a free port and preload stubs
  stubby serve --address 127.0.0.1:0 --stubs 'stubs/**/*.yaml'

  # Start from a config file
  stubby serve --config stubby.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, &serveFlagVals)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, serveFlagVals.pidFile, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	bindServeFlags(serveCmd, &serveFlagVals)
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	cmd.Flags().StringVarP(&f.address, "address", "a", config.DefaultAddress, "Address to listen on (port 0 picks a free port)")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to a YAML or JSON config file")
	cmd.Flags().StringSliceVarP(&f.stubs, "stubs", "s", nil, "Stub file patterns to load at startup (doublestar globs)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().DurationVar(&f.drainTimeout, "drain-timeout", config.DefaultDrainTimeout, "Maximum time to let in-flight requests finish on shutdown")
	cmd.Flags().IntVar(&f.maxRequests, "max-requests", config.DefaultMaxRequests, "Maximum recorded requests kept")
	cmd.Flags().StringVar(&f.pidFile, "pid-file", DefaultPIDPath(), "Path to PID file (empty disables)")
}

// resolveConfig layers defaults, the config file, the environment and the
// flags that were set explicitly.
func resolveConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		loaded, err := config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Address = f.address
	}
	if flags.Changed("stubs") {
		cfg.Stubs = f.stubs
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if flags.Changed("drain-timeout") {
		cfg.DrainTimeout = config.Duration(f.drainTimeout)
	}
	if flags.Changed("max-requests") {
		cfg.MaxRequests = f.maxRequests
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe starts the server and blocks until it stops, ctx is cancelled,
// or the process receives SIGINT/SIGTERM.
func runServe(ctx context.Context, cfg *config.Config, pidFile string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closeLog, err := logging.Open(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: os.Stderr,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	svc := stub.NewService(stub.WithMaxRequests(cfg.MaxRequests), stub.WithLogger(log))
	if err := preloadStubs(svc, cfg.Stubs, log); err != nil {
		return err
	}

	log.Info("starting up", "address", cfg.Address, "version", version.Version)
	h, err := server.Start(ctx, cfg.Address,
		server.WithLogger(log),
		server.WithMatcher(svc),
		server.WithStore(svc),
		server.WithDrainTimeout(time.Duration(cfg.DrainTimeout)),
		server.WithReadTimeout(time.Duration(cfg.ReadTimeout)),
		server.WithWriteTimeout(time.Duration(cfg.WriteTimeout)),
	)
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	fmt.Fprintf(out, "Listening on %s\n", h.URL())

	if pidFile != "" {
		info := &PIDFile{
			PID:       os.Getpid(),
			StartTime: time.Now(),
			Version:   version.Version,
			URL:       h.URL(),
		}
		if err := WritePIDFile(pidFile, info); err != nil {
			output.Warn("failed to write PID file: %v", err)
		}
		defer func() {
			if err := RemovePIDFile(pidFile); err != nil {
				output.Warn("failed to remove PID file: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		err = h.Shutdown()
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
		err = h.Shutdown()
	case <-h.Done():
		err = h.Join()
	}
	if err != nil {
		log.Error("server ended with error", "error", err)
		return fmt.Errorf("server ended with error: %w", err)
	}

	log.Info("server finished")
	return nil
}

func preloadStubs(svc *stub.Service, patterns []string, log *slog.Logger) error {
	if len(patterns) == 0 {
		return nil
	}
	exchanges, err := stub.LoadFiles(patterns)
	if err != nil {
		return err
	}
	for _, ex := range exchanges {
		if err := svc.AddResponse(ex); err != nil {
			return err
		}
	}
	log.Info("loaded stubs", "count", len(exchanges))
	return nil
}
