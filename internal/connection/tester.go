// Package connection verifies that a registered database server accepts the
// stored credentials before the server is used for backups.
package connection

import (
	"context"
	"database/sql"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/types"
	"nexdb/logger"
	"time"
)

const defaultTimeout = 10 * time.Second

type (
	Result struct {
		Engine  types.Engine
		Version string
		Latency time.Duration
	}

	Tester interface {
		Test(ctx context.Context, creds types.Credentials) (Result, error)
	}

	tester struct {
		timeout time.Duration
	}
)

func NewTester(timeout time.Duration) Tester {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &tester{timeout: timeout}
}

func (t *tester) Test(ctx context.Context, creds types.Credentials) (Result, error) {
	if creds.Port <= 0 {
		creds.Port = creds.Engine.DefaultPort()
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	var (
		version string
		err     error
	)
	switch creds.Engine {
	case types.EnginePostgres:
		version, err = t.testPostgres(ctx, creds)
	case types.EngineMysql:
		version, err = t.testMysql(ctx, creds)
	default:
		return Result{}, errors.Wrapf(types.ErrUnsupportedEngine, "engine %q", creds.Engine)
	}

	if err != nil {
		logger.Warn("connection test failed",
			zap.String("server", creds.String()),
			zap.Error(err))
		return Result{}, &types.ConnectionFailedError{Host: creds.Address(), Cause: err}
	}

	return Result{
		Engine:  creds.Engine,
		Version: version,
		Latency: time.Since(start),
	}, nil
}

func (t *tester) testPostgres(ctx context.Context, creds types.Credentials) (string, error) {
	conn, err := connectPostgres(ctx, creds, t.timeout)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	if err := conn.Ping(ctx); err != nil {
		return "", err
	}

	var version string
	if err := conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", errors.Wrap(err, "failed to read server version")
	}
	return version, nil
}

func (t *tester) testMysql(ctx context.Context, creds types.Credentials) (string, error) {
	db, err := openMysql(creds, t.timeout)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.PingContext(ctx); err != nil {
		return "", err
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", errors.Wrap(err, "failed to read server version")
	}
	return version, nil
}

// connectPostgres opens a session on the maintenance database of the server
func connectPostgres(ctx context.Context, creds types.Credentials, timeout time.Duration) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig("")
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres config")
	}
	cfg.Host = creds.Host
	cfg.Port = uint16(creds.Port)
	cfg.User = creds.Username
	cfg.Password = creds.Secret
	cfg.Database = "postgres"
	cfg.ConnectTimeout = timeout

	return pgx.ConnectConfig(ctx, cfg)
}

func openMysql(creds types.Credentials, timeout time.Duration) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = creds.Address()
	cfg.User = creds.Username
	cfg.Passwd = creds.Secret
	cfg.Timeout = timeout
	cfg.InterpolateParams = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mysql config")
	}
	return sql.OpenDB(connector), nil
}
