package cmd

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexdb/client/internal/api/apitest"
	"nexdb/client/internal/cmdutil"
	"nexdb/internal/types"
	"testing"
)

func execute(t *testing.T, svc *apitest.Service, args ...string) error {
	t.Helper()
	root := New(svc.Factory)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestBackupCreate(t *testing.T) {
	t.Run("by database id", func(t *testing.T) {
		svc := &apitest.Service{}
		id := uuid.New()
		require.NoError(t, execute(t, svc, "backup", "create", "--database-id", id.String(), "--upload"))

		require.Len(t, svc.Backups, 1)
		assert.Equal(t, id, svc.Backups[0].DatabaseID)
		assert.True(t, svc.Backups[0].Upload)
		assert.Equal(t, "cli", svc.Backups[0].CreatedBy)
	})

	t.Run("crontab invocation", func(t *testing.T) {
		svc := &apitest.Service{}
		db := svc.SeedDatabase("shop", types.EngineMysql)
		scheduleID := uuid.New()

		err := execute(t, svc, "backup", "create",
			"--engine", "mysql",
			"--database", "shop",
			"--database-id", db.ID.String(),
			"--schedule-id", scheduleID.String())
		require.NoError(t, err)

		require.Len(t, svc.Backups, 1)
		assert.Equal(t, db.ID, svc.Backups[0].DatabaseID)
		assert.Equal(t, scheduleID, svc.Backups[0].ScheduleID)
		assert.Equal(t, "crontab", svc.Backups[0].CreatedBy)
		assert.False(t, svc.Backups[0].Upload)
	})

	t.Run("by name and engine", func(t *testing.T) {
		svc := &apitest.Service{}
		svc.SeedDatabase("shop", types.EngineMysql)
		pg := svc.SeedDatabase("shop", types.EnginePostgres)

		require.NoError(t, execute(t, svc, "backup", "create", "--database", "shop", "--engine", "postgres"))
		require.Len(t, svc.Backups, 1)
		assert.Equal(t, pg.ID, svc.Backups[0].DatabaseID)
	})

	t.Run("ambiguous name", func(t *testing.T) {
		svc := &apitest.Service{}
		svc.SeedDatabase("shop", types.EngineMysql)
		svc.SeedDatabase("shop", types.EnginePostgres)

		err := execute(t, svc, "backup", "create", "--database", "shop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exists on 2 servers")
		assert.Empty(t, svc.Backups)
	})

	t.Run("unknown name", func(t *testing.T) {
		svc := &apitest.Service{}
		err := execute(t, svc, "backup", "create", "--database", "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `database "missing" not found`)
	})

	t.Run("failed backup returns an error", func(t *testing.T) {
		svc := &apitest.Service{BackupErr: errors.New("mysqldump: access denied")}
		err := execute(t, svc, "backup", "create", "--database-id", uuid.NewString())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("unsupported engine", func(t *testing.T) {
		svc := &apitest.Service{}
		err := execute(t, svc, "backup", "create", "--database", "shop", "--engine", "oracle")
		assert.ErrorIs(t, err, types.ErrUnsupportedEngine)
	})
}

func TestScheduleCreate(t *testing.T) {
	databaseID := uuid.NewString()

	t.Run("weekly", func(t *testing.T) {
		svc := &apitest.Service{}
		err := execute(t, svc, "schedule", "create",
			"--database-id", databaseID,
			"--frequency", "weekly",
			"--day-of-week", "0",
			"--hour", "3",
			"--minute", "15",
			"--upload")
		require.NoError(t, err)

		require.Len(t, svc.Schedules, 1)
		params := svc.Schedules[0]
		assert.Equal(t, types.FrequencyWeekly, params.Frequency)
		require.NotNil(t, params.DayOfWeek)
		assert.Equal(t, 0, *params.DayOfWeek)
		assert.Nil(t, params.DayOfMonth)
		assert.Nil(t, params.RetentionCount)
		assert.Nil(t, params.Enabled)
		assert.Equal(t, 3, params.Hour)
		assert.Equal(t, 15, params.Minute)
		assert.True(t, params.UploadToRemote)
	})

	t.Run("retention and disabled", func(t *testing.T) {
		svc := &apitest.Service{}
		err := execute(t, svc, "schedule", "create", "--database-id", databaseID, "--retention", "0", "--disabled")
		require.NoError(t, err)

		params := svc.Schedules[0]
		require.NotNil(t, params.RetentionCount)
		assert.Equal(t, 0, *params.RetentionCount)
		require.NotNil(t, params.Enabled)
		assert.False(t, *params.Enabled)
	})

	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"custom without expression", []string{"--frequency", "custom"}, "need an --expression"},
		{"custom with bad expression", []string{"--frequency", "custom", "--expression", "61 * * * *"}, "invalid cron expression"},
		{"unknown frequency", []string{"--frequency", "hourly"}, "Frequency"},
		{"hour out of range", []string{"--hour", "24"}, "Hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &apitest.Service{}
			args := append([]string{"schedule", "create", "--database-id", databaseID}, tt.args...)
			err := execute(t, svc, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
			assert.Empty(t, svc.Schedules)
		})
	}
}

func TestServersAdd(t *testing.T) {
	t.Setenv(cmdutil.EnvServerSecret, "hunter2")
	svc := &apitest.Service{}

	err := execute(t, svc, "servers", "add",
		"--name", "primary",
		"--engine", "postgresql",
		"--host", "10.0.0.5",
		"--username", "backup",
		"--skip-test")
	require.NoError(t, err)

	require.Len(t, svc.Servers, 1)
	params := svc.Servers[0]
	assert.Equal(t, "hunter2", params.Secret)
	assert.Equal(t, "postgresql", params.Engine)
	assert.True(t, params.SkipConnectionTest)
	assert.Zero(t, params.Port)
}

func TestServersAddRejectsInvalidInput(t *testing.T) {
	t.Setenv(cmdutil.EnvServerSecret, "hunter2")
	svc := &apitest.Service{}

	err := execute(t, svc, "servers", "add", "--name", "primary", "--engine", "mysql", "--host", "10.0.0.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Username")
	assert.Empty(t, svc.Servers)
}

func TestServersHasNoSecretFlag(t *testing.T) {
	svc := &apitest.Service{}
	root := New(svc.Factory)
	add, _, err := root.Find([]string{"servers", "add"})
	require.NoError(t, err)

	for _, name := range []string{"secret", "password"} {
		assert.Nil(t, add.Flags().Lookup(name))
	}
}

func TestInvalidIDs(t *testing.T) {
	svc := &apitest.Service{}
	for _, args := range [][]string{
		{"servers", "test", "--id", "nope"},
		{"backup", "delete", "--id", "nope"},
		{"backup", "download", "--id", "nope"},
		{"schedule", "delete", "--id", "nope"},
		{"databases", "add", "--server-id", "nope", "--name", "shop"},
		{"databases", "create", "--server-id", "nope", "--name", "shop"},
		{"databases", "remote", "--server-id", "nope"},
		{"projects", "delete", "--id", "nope", "--force"},
		{"projects", "update", "--id", "nope", "--name", "x"},
	} {
		err := execute(t, svc, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "invalid", args)
	}
}

func TestProjects(t *testing.T) {
	svc := &apitest.Service{}
	require.NoError(t, execute(t, svc, "projects", "create", "--name", "shop", "--description", "storefront"))
	require.Len(t, svc.Projects, 1)
	assert.Equal(t, "storefront", svc.Projects[0].Description)

	id := uuid.New()
	require.NoError(t, execute(t, svc, "projects", "update", "--id", id.String(), "--name", "shop-eu"))
	require.Len(t, svc.ProjectUpdates, 1)
	require.NotNil(t, svc.ProjectUpdates[0].Name)
	assert.Equal(t, "shop-eu", *svc.ProjectUpdates[0].Name)
	assert.Nil(t, svc.ProjectUpdates[0].Description, "flags left out are not sent")

	err := execute(t, svc, "projects", "update", "--id", id.String())
	assert.ErrorIs(t, err, cmdutil.ErrNothingToUpdate)

	require.NoError(t, execute(t, svc, "projects", "delete", "--id", id.String(), "--force"))
	assert.Equal(t, []uuid.UUID{id}, svc.DeletedProjects)

	err = execute(t, svc, "projects", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name")
}

func TestDatabasesCreate(t *testing.T) {
	svc := &apitest.Service{}
	serverID := uuid.New()

	require.NoError(t, execute(t, svc, "databases", "create", "--server-id", serverID.String(), "--name", "shop"))
	require.Len(t, svc.Created, 1)
	assert.Equal(t, "shop", svc.Created[0].Name)

	databases, err := svc.ListDatabases(context.Background(), serverID)
	require.NoError(t, err)
	assert.Len(t, databases, 1, "created databases are added")
}

func TestUsersCreate(t *testing.T) {
	t.Setenv(cmdutil.EnvUserPassword, "app-s3cret")
	svc := &apitest.Service{}
	serverID := uuid.New()

	err := execute(t, svc, "users", "create", "--server-id", serverID.String(), "--username", "app", "--database", "shop")
	require.NoError(t, err)

	require.Len(t, svc.Users, 1)
	assert.Equal(t, "app", svc.Users[0].Username)
	assert.Equal(t, "app-s3cret", svc.Users[0].Password)
	assert.Equal(t, "shop", svc.Users[0].Database)

	root := New(svc.Factory)
	create, _, err := root.Find([]string{"users", "create"})
	require.NoError(t, err)
	assert.Nil(t, create.Flags().Lookup("password"))
}

func TestUsersCreateRejectsShortPassword(t *testing.T) {
	t.Setenv(cmdutil.EnvUserPassword, "short")
	svc := &apitest.Service{}

	err := execute(t, svc, "users", "create", "--server-id", uuid.NewString(), "--username", "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password")
	assert.Empty(t, svc.Users)
}
