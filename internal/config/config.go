package config

import (
	"github.com/joho/godotenv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	SchedulerModeInProcess = "inprocess"
	SchedulerModeCrontab   = "crontab"

	RemoteDriverMinio = "minio"
	RemoteDriverS3    = "s3"
)

type (
	Config struct {
		// EncryptionKey is a hex encoded AES-256 key used to encrypt server secrets before storing them in the DB.
		// When empty a key file is generated in DataDir on first start.
		EncryptionKey string

		// AccessKey is the master access key to the server. Must be kept safe and secure!
		AccessKey string

		ServerSSLCertFile, ServerSSLKeyFile string

		ListenAddr   string
		DataDir      string
		DatabasePath string
		LogMode      string
		LogFile      string
		CORSOrigins  []string

		Dump      DumpConfig
		Remote    RemoteConfig
		Scheduler SchedulerConfig
		Firewall  FirewallConfig
	}

	DumpConfig struct {
		BackupDir      string
		MysqldumpPath  string
		PgDumpPath     string
		Timeout        time.Duration
		MinFreeSpaceMB uint64
		Concurrency    int
	}

	RemoteConfig struct {
		Driver     string
		Endpoint   string
		Bucket     string
		AccessKey  string
		SecretKey  string
		Region     string
		UseSSL     bool
		AutoUpload bool
	}

	SchedulerConfig struct {
		Mode           string
		Timezone       string
		ConcurrentJobs uint
		CrontabCommand string
		CrontabUser    string
	}

	FirewallConfig struct {
		Table, Chain string
	}
)

func New() Config {
	// a missing .env file is fine, the environment is the source of truth
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "/var/nexdb/data")
	return Config{
		AccessKey:         os.Getenv("ACCESS_KEY"),
		EncryptionKey:     os.Getenv("ENCRYPTION_KEY"),
		ServerSSLCertFile: os.Getenv("SERVER_SSL_CERT_FILE"),
		ServerSSLKeyFile:  os.Getenv("SERVER_SSL_KEY_FILE"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		DataDir:           dataDir,
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join(dataDir, "nexdb.db")),
		LogMode:           getEnv("LOG_MODE", "development"),
		LogFile:           os.Getenv("LOG_FILE"),
		CORSOrigins:       getList("CORS_ORIGINS"),
		Dump: DumpConfig{
			BackupDir:      getEnv("BACKUP_DIR", filepath.Join(dataDir, "backups")),
			MysqldumpPath:  getEnv("MYSQLDUMP_PATH", "mysqldump"),
			PgDumpPath:     getEnv("PG_DUMP_PATH", "pg_dump"),
			Timeout:        getDuration("DUMP_TIMEOUT", 2*time.Hour),
			MinFreeSpaceMB: uint64(getInt("MIN_FREE_SPACE_MB", 100)),
			Concurrency:    getInt("BACKUP_CONCURRENCY", 1),
		},
		Remote: RemoteConfig{
			Driver:     getEnv("REMOTE_DRIVER", RemoteDriverMinio),
			Endpoint:   os.Getenv("S3_ENDPOINT"),
			Bucket:     os.Getenv("S3_BUCKET"),
			AccessKey:  os.Getenv("S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("S3_SECRET_KEY"),
			Region:     getEnv("S3_REGION", "us-east-1"),
			UseSSL:     getBool("S3_USE_SSL", true),
			AutoUpload: getBool("REMOTE_AUTO_UPLOAD", false),
		},
		Scheduler: SchedulerConfig{
			Mode:           getEnv("SCHEDULER_MODE", SchedulerModeInProcess),
			Timezone:       getEnv("SCHEDULER_TIMEZONE", "UTC"),
			ConcurrentJobs: uint(getInt("SCHEDULER_CONCURRENT_JOBS", 10)),
			CrontabCommand: getEnv("CRONTAB_COMMAND", "nexdb"),
			CrontabUser:    os.Getenv("CRONTAB_USER"),
		},
		Firewall: FirewallConfig{
			Table: getEnv("FIREWALL_TABLE", "nexdb"),
			Chain: getEnv("FIREWALL_CHAIN", "nexdb_input"),
		},
	}
}

func (c Config) HasTLSConfig() bool {
	return c.ServerSSLCertFile != "" && c.ServerSSLKeyFile != ""
}

func (c Config) KeyFile() string {
	return filepath.Join(c.DataDir, "nexdb.aes")
}

// HasRemote reports whether enough is configured to reach object storage
func (r RemoteConfig) HasRemote() bool {
	return r.Bucket != "" && r.AccessKey != "" && r.SecretKey != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	result := make([]string, 0)
	for _, next := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(next); v != "" {
			result = append(result, v)
		}
	}
	return result
}
