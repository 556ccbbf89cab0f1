package scheduler

import (
	"context"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexdb/internal/types"
	"strings"
	"testing"
	"time"
)

func newTarget(engine types.Engine, database, expr string) Target {
	return Target{
		ScheduleID: uuid.New(),
		DatabaseID: uuid.New(),
		Engine:     engine,
		Database:   database,
		Expression: expr,
	}
}

func materializers(t *testing.T) map[string]Materializer {
	t.Helper()
	inprocess, err := NewInProcess(time.UTC, 2, func(context.Context, uuid.UUID) error { return nil })
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = inprocess.Shutdown()
	})

	crontab, err := NewCrontab(NewMemoryTable(), "/usr/local/bin/nexdb", time.UTC)
	require.NoError(t, err)

	return map[string]Materializer{
		"inprocess": inprocess,
		"crontab":   crontab,
	}
}

func TestMaterializeRoundTrip(t *testing.T) {
	for name, m := range materializers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			targets := []Target{
				newTarget(types.EngineMysql, "shop", "30 2 * * *"),
				newTarget(types.EnginePostgres, "orders db", "0 0 * * 0"),
				newTarget(types.EnginePostgres, "o'brien", "15 3 1 * *"),
			}
			targets[1].Upload = true

			for _, target := range targets {
				entry, err := m.Materialize(ctx, target)
				require.NoError(t, err)
				assert.Equal(t, target.Expression, entry.Expression)
				assert.False(t, entry.NextRun.IsZero())
			}

			entries, err := m.ListMaterialized(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 3)

			byID := make(map[uuid.UUID]Entry)
			for _, e := range entries {
				byID[e.ScheduleID] = e
			}
			for _, target := range targets {
				e, ok := byID[target.ScheduleID]
				require.True(t, ok)
				assert.Equal(t, target.Engine, e.Engine)
				assert.Equal(t, target.Database, e.Database)
				assert.Equal(t, target.DatabaseID, e.DatabaseID)
				assert.Equal(t, target.Upload, e.Upload)
			}

			for i := 1; i < len(entries); i++ {
				assert.False(t, entries[i].NextRun.Before(entries[i-1].NextRun))
			}
		})
	}
}

func TestMaterializeReplaces(t *testing.T) {
	for name, m := range materializers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			target := newTarget(types.EngineMysql, "shop", "30 2 * * *")
			_, err := m.Materialize(ctx, target)
			require.NoError(t, err)

			target.Expression = "0 4 * * *"
			_, err = m.Materialize(ctx, target)
			require.NoError(t, err)

			entries, err := m.ListMaterialized(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "0 4 * * *", entries[0].Expression)
		})
	}
}

func TestDematerializeIsIdempotent(t *testing.T) {
	for name, m := range materializers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			target := newTarget(types.EnginePostgres, "orders", "0 0 * * 0")
			_, err := m.Materialize(ctx, target)
			require.NoError(t, err)

			removed, err := m.Dematerialize(ctx, target.ScheduleID)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			removed, err = m.Dematerialize(ctx, target.ScheduleID)
			require.NoError(t, err)
			assert.Equal(t, 0, removed)

			removed, err = m.Dematerialize(ctx, uuid.New())
			require.NoError(t, err)
			assert.Equal(t, 0, removed)

			entries, err := m.ListMaterialized(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestMaterializeRejectsInvalidExpression(t *testing.T) {
	for name, m := range materializers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := m.Materialize(context.Background(), newTarget(types.EngineMysql, "shop", "61 * * * *"))
			assert.Error(t, err)
		})
	}
}

func TestCrontabPreservesForeignLines(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable(
		"MAILTO=ops@example.com",
		"0 5 * * * /usr/bin/logrotate /etc/logrotate.conf",
		"0 1 * * * nexdb backup create # nexdb backup schedule not-a-uuid",
		"0 1 * * * nexdb backup create --database x # nexdb backup schedule "+uuid.NewString(),
		"bogus line # nexdb backup schedule "+uuid.NewString(),
	)
	c, err := NewCrontab(table, "nexdb --config '/etc/nexdb/client.yml'", time.UTC)
	require.NoError(t, err)

	target := newTarget(types.EngineMysql, "shop", "30 2 * * *")
	target.Upload = true
	_, err = c.Materialize(ctx, target)
	require.NoError(t, err)

	entries, err := c.ListMaterialized(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, target.ScheduleID, entries[0].ScheduleID)

	lines, err := table.Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 6)
	assert.Equal(t, "MAILTO=ops@example.com", lines[0])
	assert.Equal(t, "0 5 * * * /usr/bin/logrotate /etc/logrotate.conf", lines[1])

	last := lines[5]
	assert.True(t, strings.HasPrefix(last, "30 2 * * * nexdb --config /etc/nexdb/client.yml backup create --engine mysql --database shop"))
	assert.Contains(t, last, "--upload # nexdb backup schedule "+target.ScheduleID.String())

	_, err = c.Dematerialize(ctx, target.ScheduleID)
	require.NoError(t, err)
	lines, err = table.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 5)
}

func TestParseLine(t *testing.T) {
	id := uuid.New()
	dbID := uuid.New()
	line := "0 3 * * 1 nexdb backup create --engine postgres --database 'sales db' --database-id " +
		dbID.String() + " --schedule-id " + id.String() + " # nexdb backup schedule " + id.String()

	target, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, id, target.ScheduleID)
	assert.Equal(t, dbID, target.DatabaseID)
	assert.Equal(t, types.EnginePostgres, target.Engine)
	assert.Equal(t, "sales db", target.Database)
	assert.Equal(t, "0 3 * * 1", target.Expression)
	assert.False(t, target.Upload)

	_, err = ParseLine("0 3 * * 1 nexdb backup create --engine oracle --database x # nexdb backup schedule " + id.String())
	assert.Error(t, err)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	c, err := NewCrontab(NewMemoryTable(), "nexdb", time.UTC)
	require.NoError(t, err)

	stale := newTarget(types.EngineMysql, "old", "0 1 * * *")
	drifted := newTarget(types.EngineMysql, "shop", "0 2 * * *")
	unchanged := newTarget(types.EnginePostgres, "orders", "0 3 * * *")
	for _, target := range []Target{stale, drifted, unchanged} {
		_, err := c.Materialize(ctx, target)
		require.NoError(t, err)
	}

	drifted.Expression = "45 2 * * *"
	missing := newTarget(types.EnginePostgres, "billing", "0 4 1 * *")

	report, err := Reconcile(ctx, c, []Target{drifted, unchanged, missing})
	require.NoError(t, err)
	assert.Equal(t, Report{Installed: 1, Updated: 1, Removed: 1, Unchanged: 1}, report)

	entries, err := c.ListMaterialized(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	expressions := make(map[uuid.UUID]string)
	for _, e := range entries {
		expressions[e.ScheduleID] = e.Expression
	}
	assert.Equal(t, "45 2 * * *", expressions[drifted.ScheduleID])
	assert.NotContains(t, expressions, stale.ScheduleID)

	report, err = Reconcile(ctx, c, []Target{drifted, unchanged, missing})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
}

func TestReconcileRemovesUnparseableTaggedLines(t *testing.T) {
	ctx := context.Background()
	orphan := uuid.New()
	broken := newTarget(types.EngineMysql, "shop", "0 2 * * *")
	table := NewMemoryTable(
		"0 * * * * /usr/bin/logrotate",
		"0 3 * * 1 nexdb backup create --engine oracle --database x # nexdb backup schedule "+orphan.String(),
		"99 2 * * * nexdb backup create --engine mysql --database shop # nexdb backup schedule "+broken.ScheduleID.String(),
	)
	c, err := NewCrontab(table, "nexdb", time.UTC)
	require.NoError(t, err)

	entries, err := c.ListMaterialized(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	ids, err := c.ListTaggedIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{orphan, broken.ScheduleID}, ids)

	report, err := Reconcile(ctx, c, []Target{broken})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Updated)

	lines, err := table.Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "0 * * * * /usr/bin/logrotate", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0 2 * * * "))
	assert.NotContains(t, strings.Join(lines, "\n"), orphan.String())
}

func TestInProcessRunsAction(t *testing.T) {
	fired := make(chan uuid.UUID, 1)
	p, err := NewInProcess(time.UTC, 1, func(_ context.Context, id uuid.UUID) error {
		select {
		case fired <- id:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	defer func() {
		_ = p.Shutdown()
	}()

	p.Start(context.Background())
	target := newTarget(types.EngineMysql, "shop", "0 3 * * *")
	_, err = p.Materialize(context.Background(), target)
	require.NoError(t, err)

	require.NoError(t, p.RunNow(target.ScheduleID))
	select {
	case id := <-fired:
		assert.Equal(t, target.ScheduleID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}

	assert.True(t, types.IsNotFound(p.RunNow(uuid.New())))
}

func TestTargetFor(t *testing.T) {
	schedule := &types.BackupSchedule{
		ID:             uuid.New(),
		DatabaseID:     uuid.New(),
		Frequency:      types.FrequencyDaily,
		Hour:           1,
		UploadToRemote: true,
	}
	_, err := TargetFor(schedule)
	assert.Error(t, err)

	schedule.Database = &types.Database{Name: "shop", Server: &types.DatabaseServer{Engine: types.EngineMysql}}
	target, err := TargetFor(schedule)
	require.NoError(t, err)
	assert.Equal(t, "0 1 * * *", target.Expression)
	assert.Equal(t, types.EngineMysql, target.Engine)
	assert.True(t, target.Upload)
}
