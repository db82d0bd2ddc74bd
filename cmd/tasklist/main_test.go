package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TASKLIST_STORE_BACKEND", "memory")
	t.Setenv("TASKLIST_TELEMETRY_ENABLED", "false")
	t.Setenv("TASKLIST_TELEMETRY_OTEL_LOG_LEVEL", "none")
	t.Setenv("TASKLIST_LOGGING_LEVEL", "error")
}

func TestExportCommandWritesSnapshot(t *testing.T) {
	setTestEnv(t)
	dir := filepath.Join(t.TempDir(), "exports")
	t.Setenv("TASKLIST_EXPORT_LOCAL_DIR", dir)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"export", "--prefix", "daily"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	uri := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(uri, "file://"+filepath.Join(dir, "daily", "tasks-")), uri)

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.EqualValues(t, 0, snap["count"])
}

func TestExportCommandWithoutDestination(t *testing.T) {
	setTestEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"export"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "export destination not configured")
}

func TestInvalidConfigFails(t *testing.T) {
	setTestEnv(t)
	t.Setenv("TASKLIST_STORE_BACKEND", "cassandra")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"export"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "load config failed")
}
