package connection

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"nexdb/internal/types"
	"nexdb/logger"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	mysqlDatabaseExists = 1007
	mysqlUserExists     = 1396

	postgresDuplicateDatabase = "42P04"
	postgresDuplicateObject   = "42710"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

	mysqlSystemDatabases = []string{"information_schema", "mysql", "performance_schema", "sys"}
)

type (
	// User is a login to create on a server
	User struct {
		Username string
		Password string
		// Database receives every privilege for the user when set
		Database string
	}

	// Provisioner creates databases and logins on a registered server using its stored credentials
	Provisioner interface {
		ListDatabases(ctx context.Context, creds types.Credentials) ([]string, error)
		CreateDatabase(ctx context.Context, creds types.Credentials, name string) error
		CreateUser(ctx context.Context, creds types.Credentials, user User) error
	}

	provisioner struct {
		timeout time.Duration
	}

	statement struct {
		query string
		args  []any
	}
)

func NewProvisioner(timeout time.Duration) Provisioner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &provisioner{timeout: timeout}
}

// ValidateIdentifier accepts plain SQL identifiers only, so names never need more than quoting
func ValidateIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return &types.InvalidRequestError{
			Reason: fmt.Sprintf("invalid %s name %q: use letters, digits and underscores, starting with a letter", kind, name),
		}
	}
	return nil
}

func (p *provisioner) ListDatabases(ctx context.Context, creds types.Credentials) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	switch creds.Engine {
	case types.EngineMysql:
		var names []string
		err := p.withMysql(ctx, creds, func(db *sql.DB) error {
			rows, err := db.QueryContext(ctx, "SHOW DATABASES")
			if err != nil {
				return err
			}
			defer rows.Close()

			if names, err = scanNames(rows.Next, rows.Scan); err != nil {
				return err
			}
			return rows.Err()
		})
		return filterSystemDatabases(names), err
	case types.EnginePostgres:
		conn, err := connectPostgres(ctx, creds, p.timeout)
		if err != nil {
			return nil, &types.ConnectionFailedError{Host: creds.Address(), Cause: err}
		}
		defer func() {
			_ = conn.Close(context.Background())
		}()

		rows, err := conn.Query(ctx, postgresListDatabases)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		names, err := scanNames(rows.Next, rows.Scan)
		if err != nil {
			return nil, err
		}
		return names, rows.Err()
	default:
		return nil, errors.Wrapf(types.ErrUnsupportedEngine, "engine %q", creds.Engine)
	}
}

func (p *provisioner) CreateDatabase(ctx context.Context, creds types.Credentials, name string) error {
	if err := ValidateIdentifier("database", name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	switch creds.Engine {
	case types.EngineMysql:
		err = p.withMysql(ctx, creds, func(db *sql.DB) error {
			return execAll(ctx, db.ExecContext, mysqlCreateDatabase(name))
		})
	case types.EnginePostgres:
		err = p.withPostgres(ctx, creds, func(conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, postgresCreateDatabase(name))
			return err
		})
	default:
		return errors.Wrapf(types.ErrUnsupportedEngine, "engine %q", creds.Engine)
	}
	if err != nil {
		return translate(err, "database "+name)
	}

	logger.Info("database created",
		zap.String("server", creds.String()),
		zap.String("database", name))
	return nil
}

func (p *provisioner) CreateUser(ctx context.Context, creds types.Credentials, user User) error {
	if err := ValidateIdentifier("user", user.Username); err != nil {
		return err
	}
	if user.Database != "" {
		if err := ValidateIdentifier("database", user.Database); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	switch creds.Engine {
	case types.EngineMysql:
		err = p.withMysql(ctx, creds, func(db *sql.DB) error {
			statements := mysqlCreateUser(user)
			if err := execAll(ctx, db.ExecContext, statements[:1]); err != nil {
				return err
			}
			if err := execAll(ctx, db.ExecContext, statements[1:]); err != nil {
				// account DDL is not transactional in mysql
				_, _ = db.ExecContext(ctx, "DROP USER ?@'%'", user.Username)
				return err
			}
			return nil
		})
	case types.EnginePostgres:
		err = p.withPostgres(ctx, creds, func(conn *pgx.Conn) error {
			return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
				for _, query := range postgresCreateUser(user) {
					if _, err := tx.Exec(ctx, query); err != nil {
						return err
					}
				}
				return nil
			})
		})
	default:
		return errors.Wrapf(types.ErrUnsupportedEngine, "engine %q", creds.Engine)
	}
	if err != nil {
		return translate(err, "user "+user.Username)
	}

	logger.Info("database user created",
		zap.String("server", creds.String()),
		zap.String("user", user.Username),
		zap.String("database", user.Database))
	return nil
}

func (p *provisioner) withMysql(ctx context.Context, creds types.Credentials, fn func(db *sql.DB) error) error {
	db, err := openMysql(creds, p.timeout)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.PingContext(ctx); err != nil {
		return &types.ConnectionFailedError{Host: creds.Address(), Cause: err}
	}
	return fn(db)
}

func (p *provisioner) withPostgres(ctx context.Context, creds types.Credentials, fn func(conn *pgx.Conn) error) error {
	conn, err := connectPostgres(ctx, creds, p.timeout)
	if err != nil {
		return &types.ConnectionFailedError{Host: creds.Address(), Cause: err}
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()
	return fn(conn)
}

// translate turns "already exists" server errors into conflicts
func translate(err error, what string) error {
	var (
		myErr *mysql.MySQLError
		pgErr *pgconn.PgError
	)
	switch {
	case errors.As(err, &myErr) && (myErr.Number == mysqlDatabaseExists || myErr.Number == mysqlUserExists),
		errors.As(err, &pgErr) && (pgErr.Code == postgresDuplicateDatabase || pgErr.Code == postgresDuplicateObject):
		return &types.ConflictError{Reason: what + " already exists"}
	}
	return errors.Wrapf(err, "failed to create %s", what)
}

func execAll(ctx context.Context, exec func(ctx context.Context, query string, args ...any) (sql.Result, error), statements []statement) error {
	for _, s := range statements {
		if _, err := exec(ctx, s.query, s.args...); err != nil {
			return err
		}
	}
	return nil
}

func scanNames(next func() bool, scan func(dest ...any) error) ([]string, error) {
	names := make([]string, 0)
	for next() {
		var name string
		if err := scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func filterSystemDatabases(names []string) []string {
	result := lo.Filter(names, func(name string, _ int) bool {
		return !lo.Contains(mysqlSystemDatabases, strings.ToLower(name))
	})
	sort.Strings(result)
	return result
}

const postgresListDatabases = "SELECT datname FROM pg_database WHERE datistemplate = false AND datname <> 'postgres' ORDER BY datname"

func quoteMysql(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlCreateDatabase(name string) []statement {
	return []statement{{query: "CREATE DATABASE " + quoteMysql(name)}}
}

// mysqlCreateUser relies on client-side interpolation, so the password is escaped by the driver
func mysqlCreateUser(user User) []statement {
	statements := []statement{{
		query: "CREATE USER ?@'%' IDENTIFIED BY ?",
		args:  []any{user.Username, user.Password},
	}}
	if user.Database != "" {
		statements = append(statements, statement{
			query: "GRANT ALL PRIVILEGES ON " + quoteMysql(user.Database) + ".* TO ?@'%'",
			args:  []any{user.Username},
		})
	}
	return statements
}

func postgresCreateDatabase(name string) string {
	return "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
}

func postgresCreateUser(user User) []string {
	role := pgx.Identifier{user.Username}.Sanitize()
	statements := []string{"CREATE ROLE " + role + " WITH LOGIN PASSWORD " + quoteLiteral(user.Password)}
	if user.Database != "" {
		statements = append(statements,
			"GRANT ALL PRIVILEGES ON DATABASE "+pgx.Identifier{user.Database}.Sanitize()+" TO "+role)
	}
	return statements
}

// quoteLiteral quotes s as a postgres string constant. DDL takes no bind parameters.
func quoteLiteral(s string) string {
	quoted := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if strings.Contains(s, `\`) {
		return "E" + strings.ReplaceAll(quoted, `\`, `\\`)
	}
	return quoted
}
