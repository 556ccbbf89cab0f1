package connection

import (
	"context"
	"errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexdb/internal/types"
	"testing"
	"time"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"shop", true},
		{"_staging_2", true},
		{"Orders", true},
		{"", false},
		{"2fast", false},
		{"shop-db", false},
		{"shop; DROP DATABASE x", false},
		{"a`b", false},
		{"o'brien", false},
		{"abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijkl", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("database", tt.name)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var invalid *types.InvalidRequestError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestMysqlStatements(t *testing.T) {
	assert.Equal(t, []statement{{query: "CREATE DATABASE `shop`"}}, mysqlCreateDatabase("shop"))

	statements := mysqlCreateUser(User{Username: "app", Password: "it's s3cret", Database: "shop"})
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE USER ?@'%' IDENTIFIED BY ?", statements[0].query)
	assert.Equal(t, []any{"app", "it's s3cret"}, statements[0].args)
	assert.Equal(t, "GRANT ALL PRIVILEGES ON `shop`.* TO ?@'%'", statements[1].query)
	assert.NotContains(t, statements[1].query, "s3cret")

	assert.Len(t, mysqlCreateUser(User{Username: "app", Password: "x"}), 1)
}

func TestPostgresStatements(t *testing.T) {
	assert.Equal(t, `CREATE DATABASE "shop"`, postgresCreateDatabase("shop"))
	assert.Equal(t, []string{
		`CREATE ROLE "app" WITH LOGIN PASSWORD 'it''s s3cret'`,
		`GRANT ALL PRIVILEGES ON DATABASE "shop" TO "app"`,
	}, postgresCreateUser(User{Username: "app", Password: "it's s3cret", Database: "shop"}))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'plain'`, quoteLiteral("plain"))
	assert.Equal(t, `'a''b'`, quoteLiteral("a'b"))
	assert.Equal(t, `E'back\\slash'`, quoteLiteral(`back\slash`))
}

func TestFilterSystemDatabases(t *testing.T) {
	got := filterSystemDatabases([]string{"sys", "shop", "mysql", "INFORMATION_SCHEMA", "blog", "performance_schema"})
	assert.Equal(t, []string{"blog", "shop"}, got)
}

func TestTranslate(t *testing.T) {
	var conflict *types.ConflictError
	assert.ErrorAs(t, translate(&mysql.MySQLError{Number: 1007, Message: "database exists"}, "database shop"), &conflict)
	assert.Equal(t, "database shop already exists", conflict.Reason)
	assert.ErrorAs(t, translate(&pgconn.PgError{Code: "42710"}, "user app"), &conflict)

	err := translate(errors.New("access denied"), "database shop")
	assert.False(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), "failed to create database shop")
}

func TestProvisionerUnreachableServer(t *testing.T) {
	for _, engine := range []types.Engine{types.EngineMysql, types.EnginePostgres} {
		t.Run(engine.String(), func(t *testing.T) {
			creds := types.Credentials{
				Engine:   engine,
				Host:     "127.0.0.1",
				Port:     closedPort(t),
				Username: "root",
				Secret:   "wrong",
			}
			p := NewProvisioner(2 * time.Second)

			var connErr *types.ConnectionFailedError
			err := p.CreateDatabase(context.Background(), creds, "shop")
			assert.ErrorAs(t, err, &connErr)
			assert.NotContains(t, err.Error(), "wrong")

			_, err = p.ListDatabases(context.Background(), creds)
			assert.ErrorAs(t, err, &connErr)
		})
	}
}

func TestProvisionerRejectsBadNamesBeforeConnecting(t *testing.T) {
	p := NewProvisioner(time.Second)
	creds := types.Credentials{Engine: types.EngineMysql, Host: "203.0.113.1", Port: 3306}

	var invalid *types.InvalidRequestError
	assert.ErrorAs(t, p.CreateDatabase(context.Background(), creds, "shop;drop"), &invalid)
	assert.ErrorAs(t, p.CreateUser(context.Background(), creds, User{Username: "app", Database: "x y"}), &invalid)
	assert.ErrorIs(t, p.CreateDatabase(context.Background(), types.Credentials{Engine: "oracle"}, "shop"), types.ErrUnsupportedEngine)
}
