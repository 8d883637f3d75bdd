package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/Swind/go-background-task/core"
	"github.com/Swind/go-background-task/internal/config"
)

// runApp runs bgtask from an empty directory and returns its stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	err = app.Run(append([]string{"bgtask"}, args...))
	return out.String(), err
}

func TestRunCommand_AllSucceed(t *testing.T) {
	out, err := runApp(t, "run", "--tasks", "8", "--work", "0s", "--failure-rate", "0", "--log-level", "error")

	require.NoError(t, err)
	assert.Contains(t, out, "8 succeeded, 0 failed")
	assert.Contains(t, out, "created=8 completed=8 failed=0")
	assert.Contains(t, out, "recent:")
}

func TestRunCommand_AllFail(t *testing.T) {
	out, err := runApp(t, "run", "--tasks", "3", "--work", "0s", "--failure-rate", "1", "--log-level", "error")

	require.NoError(t, err)
	assert.Contains(t, out, "0 succeeded, 3 failed")
	assert.Contains(t, out, "failed during compute")
}

func TestRunCommand_InvalidFlag(t *testing.T) {
	_, err := runApp(t, "run", "--tasks", "0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tasks")
}

func TestRunCommand_WaitTimeout(t *testing.T) {
	_, err := runApp(t, "run", "--tasks", "1", "--work", "1h", "--wait-timeout", "20ms", "--log-level", "error")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestConfigCommand_PrintsEffectiveConfig(t *testing.T) {
	t.Setenv("BGTASK_RUN_TASKS", "11")

	out, err := runApp(t, "config")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 11, cfg.Run.Tasks)
	assert.Equal(t, "backgroundtask", cfg.Metrics.Namespace)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	counter := prom.NewCounter(prom.CounterOpts{Name: "bgtask_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	ui := core.NewUIThread(core.WithUIThreadConfig(&core.TaskConfig{Logger: core.NewNoOpLogger()}))
	srv := httptest.NewServer(newRouter(reg, ui))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "bgtask_test_total 1"), "metrics body: %s", body)

	ui.Stop()
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
