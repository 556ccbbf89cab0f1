package config

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/nexdb")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("DUMP_TIMEOUT", "")
	t.Setenv("SCHEDULER_MODE", "")

	cfg := New()
	assert.Equal(t, "/tmp/nexdb/nexdb.db", cfg.DatabasePath)
	assert.Equal(t, "/tmp/nexdb/backups", cfg.Dump.BackupDir)
	assert.Equal(t, "/tmp/nexdb/nexdb.aes", cfg.KeyFile())
	assert.Equal(t, 2*time.Hour, cfg.Dump.Timeout)
	assert.Equal(t, SchedulerModeInProcess, cfg.Scheduler.Mode)
	assert.False(t, cfg.Remote.HasRemote())
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("DUMP_TIMEOUT", "15m")
	t.Setenv("BACKUP_CONCURRENCY", "3")
	t.Setenv("S3_BUCKET", "dumps")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SERVER_SSL_CERT_FILE", "cert.pem")
	t.Setenv("SERVER_SSL_KEY_FILE", "key.pem")

	cfg := New()
	assert.Equal(t, 15*time.Minute, cfg.Dump.Timeout)
	assert.Equal(t, 3, cfg.Dump.Concurrency)
	assert.True(t, cfg.Remote.HasRemote())
	assert.False(t, cfg.Remote.UseSSL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.HasTLSConfig())
	assert.Equal(t, "cert.pem", cfg.ServerSSLCertFile)
}
