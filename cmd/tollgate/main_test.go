package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/server/api"
	"mercator-hq/tollgate/pkg/tps"
)

const testRules = `
points:
  - name: configPublish
    point_rule: {max_count: 10, period: 1h}
    monitor_key_rules:
      - pattern: "testKey:a*b"
        max_count: 3
        period: 1h
        model: EACH
  - name: configQuery
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Tollgate "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys([]string{"testKey:a1b", "connectionId:10.0.0.1:8848"})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "testKey", keys[0].Type())
	assert.Equal(t, "10.0.0.1:8848", keys[1].Key())

	_, err = parseKeys([]string{"nocolon"})
	assert.Error(t, err)
	_, err = parseKeys([]string{":key"})
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := execute(t, "validate", "--rules", writeRules(t, testRules), "--format", "csv")
		require.NoError(t, err)
		assert.Contains(t, out, "POINT,POINT_RULE,PATTERN,RULE")
		assert.Contains(t, out, "configPublish,10/1h0m0s SUM intercept,testKey:a*b,3/1h0m0s EACH intercept")
		assert.Contains(t, out, "configQuery,-,-,-")
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeRules(t, `
points:
  - name: a
    point_rule: {period: 1s}
  - name: a
`)
		out, err := execute(t, "validate", "--rules", path, "--format", "text")
		require.Error(t, err)
		assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
		assert.Contains(t, out, "max_count")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := execute(t, "validate", "--rules", writeRules(t, testRules), "--format", "xml")
		assert.Error(t, err)
	})
}

func TestSimulate(t *testing.T) {
	manager, err := loadManager(writeRules(t, testRules))
	require.NoError(t, err)

	report, err := simulate(context.Background(), manager, simOptions{
		Point:       "configPublish",
		Keys:        []tps.MonitorKey{tps.NewKey("testKey", "a1b")},
		Duration:    10 * time.Second,
		Requests:    50,
		Concurrency: 4,
	})
	require.NoError(t, err)

	// The EACH key rule admits 3 per hour; the point rule counts every check.
	assert.Equal(t, int64(3), report.Admitted)
	assert.Equal(t, int64(47), report.Rejected)
	require.Contains(t, report.Checks, "<point>")
	require.Contains(t, report.Checks, "testKey:a*b")
	assert.Equal(t, int64(10), report.Checks["<point>"].Admitted)
	assert.Equal(t, int64(40), report.Checks["<point>"].Exceeded)
	assert.Equal(t, int64(3), report.Checks["testKey:a*b"].Admitted)

	table := report.table()
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "<point>", table.Rows[0][0])
}

func TestSimulate_Errors(t *testing.T) {
	manager := tps.NewManager()
	_, err := simulate(context.Background(), manager, simOptions{Point: "p", Requests: 1})
	assert.Error(t, err)
	_, err = simulate(context.Background(), manager, simOptions{Point: "p", Concurrency: 1})
	assert.Error(t, err)
}

func TestSimulateCommand(t *testing.T) {
	out, err := execute(t, "simulate",
		"--rules", writeRules(t, testRules),
		"--point", "configQuery",
		"--requests", "20",
		"--concurrency", "2",
		"--rate", "0",
		"--format", "text",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "checks: 20 admitted, 0 rejected")
}

func testServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Rules.File = writeRules(t, testRules)

	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(a.close)

	ts := httptest.NewServer(a.server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestPostCheck(t *testing.T) {
	url := testServer(t)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	req := api.CheckRequest{
		Point:        "configPublish",
		ConnectionID: "conn-1",
		Keys:         []api.KeyDoc{{Type: "testKey", Key: "a1b"}},
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, postCheck(ctx, cmd, url, req))
	}
	assert.Contains(t, out.String(), "admitted: point=configPublish")
	assert.Contains(t, out.String(), "testKey:a*b a1b count=3/3")

	err := postCheck(ctx, cmd, url, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tps.ErrThrottled))
	assert.Equal(t, cli.ExitThrottled, cli.ExitCode(err))
	assert.Contains(t, out.String(), "throttled: point=configPublish pattern=testKey:a*b limit=3")

	err = postCheck(ctx, cmd, url, api.CheckRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), api.ErrorTypeInvalidRequest)
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Rules.File = writeRules(t, testRules)
	cfg.TPS.Points = []string{"extra"}
	cfg.Cluster.ServerAddr = "10.0.0.1:8848;10.0.0.2:8848"

	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, []string{"configPublish", "configQuery", "extra"}, a.manager.Points())
	require.NotNil(t, a.servers)
	assert.Len(t, a.servers.ServerList(), 2)

	records, err := a.backend.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	require.Eventually(t, func() bool { return a.server.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNewApp_InvalidRules(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.File = writeRules(t, "points: [{name: a, point_rule: {max_count: -1}}]")

	_, err := newApp(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestOpenStore(t *testing.T) {
	b, err := openStore(config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = openStore(config.StorageConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "rules.db"), Driver: "sqlite"},
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = openStore(config.StorageConfig{Backend: "etcd"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "etcd"))
}
