package backup

import (
	"bytes"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/types"
	"nexdb/logger"
	"os"
	"os/exec"
	"time"
)

const maxStderrBytes = 64 * 1024

type (
	Params struct {
		Engine      types.Engine
		Database    string
		Credentials types.Credentials
		Destination string
	}

	Result struct {
		Path     string
		Size     int64
		Duration time.Duration
	}

	Executor interface {
		Execute(ctx context.Context, params Params) (Result, error)
	}

	Options struct {
		MysqldumpPath string
		PgDumpPath    string
	}

	// command is the argv and extra environment of one dump invocation
	command struct {
		path string
		args []string
		env  []string
	}

	executor struct {
		opts Options
	}
)

func NewExecutor(opts Options) Executor {
	if opts.MysqldumpPath == "" {
		opts.MysqldumpPath = "mysqldump"
	}
	if opts.PgDumpPath == "" {
		opts.PgDumpPath = "pg_dump"
	}
	return &executor{opts: opts}
}

func (e *executor) Execute(ctx context.Context, params Params) (Result, error) {
	var cmd command
	switch params.Engine {
	case types.EngineMysql:
		cmd = mysqlCommand(e.opts.MysqldumpPath, params)
	case types.EnginePostgres:
		cmd = postgresCommand(e.opts.PgDumpPath, params)
	default:
		return Result{}, errors.Wrapf(types.ErrUnsupportedEngine, "engine %q", params.Engine)
	}

	out, err := os.OpenFile(params.Destination, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to create dump file")
	}
	defer func() {
		_ = out.Close()
	}()

	logger.Info("starting dump",
		zap.String("engine", params.Engine.String()),
		zap.String("database", params.Database),
		zap.String("server", params.Credentials.String()),
		zap.String("destination", params.Destination))

	stderr := &limitedBuffer{limit: maxStderrBytes}
	proc := exec.CommandContext(ctx, cmd.path, cmd.args...)
	proc.Env = append(os.Environ(), cmd.env...)
	proc.Stdout = out
	proc.Stderr = stderr
	proc.WaitDelay = 5 * time.Second

	start := time.Now()
	if err := proc.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrap(ctxErr, err.Error())
		}
		return Result{}, &types.DumpFailedError{
			Engine:   params.Engine,
			Database: params.Database,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	if err := out.Sync(); err != nil {
		return Result{}, errors.Wrap(err, "failed to flush dump file")
	}

	stat, err := out.Stat()
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to stat dump file")
	}

	result := Result{
		Path:     params.Destination,
		Size:     stat.Size(),
		Duration: time.Since(start),
	}
	logger.Info("dump completed",
		zap.String("database", params.Database),
		zap.Int64("size", result.Size),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func portArg(c types.Credentials) string {
	port := c.Port
	if port <= 0 {
		port = c.Engine.DefaultPort()
	}
	return fmt.Sprintf("%d", port)
}

// limitedBuffer keeps the first limit bytes written and discards the rest
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.limit - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}
