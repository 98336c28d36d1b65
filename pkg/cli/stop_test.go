package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStop_URL(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message": "Shutdown triggered"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runStop(&out, srv.URL+"/", "", time.Second))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/_control/shutdown", gotPath)
	assert.Contains(t, out.String(), "Shutdown requested")
}

func TestRunStop_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	err := runStop(&bytes.Buffer{}, srv.URL, "", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "405")
	assert.Contains(t, err.Error(), "Method not allowed")
}

func TestRunStop_FromPIDFile(t *testing.T) {
	called := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pidPath := filepath.Join(t.TempDir(), "stubby.pid")
	require.NoError(t, WritePIDFile(pidPath, &PIDFile{PID: os.Getpid(), URL: srv.URL}))

	require.NoError(t, runStop(&bytes.Buffer{}, "", pidPath, time.Second))
	select {
	case <-called:
	default:
		t.Fatal("shutdown endpoint was not called")
	}
}

func TestRunStop_NoServer(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nonexistent.pid")

	err := runStop(&bytes.Buffer{}, "", pidPath, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PID file not found")
}

func TestRunStop_StalePIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "stale.pid")
	require.NoError(t, WritePIDFile(pidPath, &PIDFile{
		PID:       9999999,
		StartTime: time.Now(),
		Version:   "0.1.0",
		URL:       "http://127.0.0.1:1",
	}))

	err := runStop(&bytes.Buffer{}, "", pidPath, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")

	_, statErr := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(statErr), "stale PID file should be removed")
}
