package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/stubby/pkg/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServeCmd(t *testing.T, args ...string) (*cobra.Command, *serveFlags) {
	t.Helper()
	f := &serveFlags{}
	cmd := &cobra.Command{Use: "serve"}
	bindServeFlags(cmd, f)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, f
}

func TestResolveConfig_Defaults(t *testing.T) {
	cmd, f := newTestServeCmd(t)

	cfg, err := resolveConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAddress, cfg.Address)
	assert.Equal(t, config.DefaultMaxRequests, cfg.MaxRequests)
}

func TestResolveConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stubby.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: 127.0.0.1:9000
logLevel: warn
logFormat: json
maxRequests: 10
`), 0o644))

	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvAddress, "127.0.0.1:9001")

	cmd, f := newTestServeCmd(t, "--config", path, "--address", "127.0.0.1:9002", "--stubs", "a.yaml,b.json")

	cfg, err := resolveConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9002", cfg.Address, "flag beats env and file")
	assert.Equal(t, "debug", cfg.LogLevel, "env beats file")
	assert.Equal(t, "json", cfg.LogFormat, "file beats default")
	assert.Equal(t, 10, cfg.MaxRequests)
	assert.Equal(t, []string{"a.yaml", "b.json"}, cfg.Stubs)
}

func TestResolveConfig_Invalid(t *testing.T) {
	cmd, f := newTestServeCmd(t, "--address", "no-port")
	_, err := resolveConfig(cmd, f)
	require.Error(t, err)

	cmd, f = newTestServeCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = resolveConfig(cmd, f)
	require.ErrorIs(t, err, config.ErrFileNotFound)
}

// syncBuffer guards a bytes.Buffer shared with the serving goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunServe_StopCommand(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "stubby.pid")
	stubPath := filepath.Join(dir, "hello.yaml")
	require.NoError(t, os.WriteFile(stubPath, []byte(`
request:
  method: GET
  path: /hello
response:
  status: 200
  body: hi
`), 0o644))

	cfg := config.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.LogLevel = "error"
	cfg.Stubs = []string{filepath.Join(dir, "*.yaml")}

	out := &syncBuffer{}
	errc := make(chan error, 1)
	go func() {
		errc <- runServe(context.Background(), cfg, pidPath, out)
	}()

	var info *PIDFile
	require.Eventually(t, func() bool {
		var err error
		info, err = ReadPIDFile(pidPath)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Contains(t, out.String(), "Listening on "+info.URL)

	require.NoError(t, runStop(&bytes.Buffer{}, "", pidPath, 5*time.Second))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after stop")
	}

	_, err := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err), "PID file should be removed on exit")
}

func TestRunServe_ContextCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.LogLevel = "error"

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	errc := make(chan error, 1)
	go func() {
		errc <- runServe(ctx, cfg, "", out)
	}()

	require.Eventually(t, func() bool {
		return out.String() != ""
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestRunServe_BadStubs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.LogLevel = "error"
	cfg.Stubs = []string{filepath.Join(t.TempDir(), "*.yaml")}

	err := runServe(context.Background(), cfg, "", &bytes.Buffer{})
	require.Error(t, err)
}
