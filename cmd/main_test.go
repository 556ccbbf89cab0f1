package main

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"nexdb/internal/config"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		AccessKey:    "master",
		ListenAddr:   "127.0.0.1:0",
		DataDir:      dir,
		DatabasePath: filepath.Join(dir, "nexdb.db"),
		Dump: config.DumpConfig{
			BackupDir:   filepath.Join(dir, "backups"),
			Timeout:     time.Minute,
			Concurrency: 1,
		},
		Scheduler: config.SchedulerConfig{
			Mode:           config.SchedulerModeInProcess,
			Timezone:       "UTC",
			ConcurrentJobs: 2,
		},
		Firewall: config.FirewallConfig{Table: "nexdb_test", Chain: "nexdb_test_input"},
	}
}

func TestSetup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	srv, teardown, err := setup(ctx, cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, teardown())
	}()

	// a key file is generated on first start
	assert.FileExists(t, cfg.KeyFile())

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/h", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schedules", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name": "acme"}`))
	req.Header.Set("X-Access-Token", "master")
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSetupRejectsUnknownSchedulerMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Mode = "systemd"
	_, _, err := setup(context.Background(), cfg)
	assert.Error(t, err)
}
