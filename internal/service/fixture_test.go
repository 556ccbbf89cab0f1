package service

import (
	"context"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nexdb/internal/backup"
	"nexdb/internal/database"
	"nexdb/internal/database/memory"
	"nexdb/internal/misc"
	"nexdb/internal/types"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type stubExecutor struct {
	mu     sync.Mutex
	calls  []backup.Params
	failOn map[string]bool
	// during runs while the dump is in flight
	during func()
	ctxErr error
}

func (s *stubExecutor) Execute(ctx context.Context, params backup.Params) (backup.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	fail := s.failOn[params.Database]
	during := s.during
	s.mu.Unlock()

	if during != nil {
		during()
	}
	s.mu.Lock()
	s.ctxErr = ctx.Err()
	s.mu.Unlock()

	f, err := os.OpenFile(params.Destination, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return backup.Result{}, err
	}
	defer f.Close()

	if fail {
		_, _ = f.WriteString("-- partial")
		return backup.Result{}, &types.DumpFailedError{
			Engine:   params.Engine,
			Database: params.Database,
			Stderr:   "access denied",
		}
	}

	content := "-- dump of " + params.Database + "\n"
	if _, err := f.WriteString(content); err != nil {
		return backup.Result{}, err
	}
	return backup.Result{Path: params.Destination, Size: int64(len(content)), Duration: time.Millisecond}, nil
}

func (s *stubExecutor) databases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		result = append(result, c.Database)
	}
	return result
}

type stubUploader struct {
	mu      sync.Mutex
	enabled bool
	err     error
	keys    []string
}

func (s *stubUploader) Upload(_ context.Context, localPath, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return "", types.ErrRemoteDisabled
	}
	if s.err != nil {
		return "", &types.UploadFailedError{Key: key, Cause: s.err}
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return key, nil
}

func (s *stubUploader) Download(_ context.Context, key string) (*types.File, error) {
	return &types.File{Stat: types.FileStat{Name: key}}, nil
}

func (s *stubUploader) Enabled() bool {
	return s.enabled
}

func (s *stubUploader) Ping(context.Context) error {
	if !s.enabled {
		return types.ErrRemoteDisabled
	}
	return s.err
}

func (s *stubUploader) uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

type fixture struct {
	repos       database.Repositories
	credentials CredentialStore
	records     RecordKeeper
	executor    *stubExecutor
	uploader    *stubUploader
	service     BackupService
	dir         string
}

func newFixture(t *testing.T, opts BackupOptions) *fixture {
	t.Helper()
	enc, err := misc.NewEncryptor(testKey)
	require.NoError(t, err)

	if opts.BackupDir == "" {
		opts.BackupDir = t.TempDir()
	}

	f := &fixture{
		repos:    memory.New(),
		executor: &stubExecutor{failOn: map[string]bool{}},
		uploader: &stubUploader{},
		dir:      opts.BackupDir,
	}
	f.credentials = NewCredentialStore(enc, f.repos.Servers)
	f.records = NewRecordKeeper(f.repos.Backups)
	f.service = NewBackupService(opts, f.repos.Databases, f.repos.Schedules, f.credentials, f.records,
		f.executor, f.uploader, nil, nil)
	return f
}

func (f *fixture) addDatabase(t *testing.T, name, engine string, projectID uuid.UUID) *types.Database {
	t.Helper()
	ctx := context.Background()
	server, err := f.credentials.RegisterServer(ctx, types.RegisterServerParams{
		ProjectID: projectID,
		Name:      name + "-server",
		Engine:    engine,
		Host:      "127.0.0.1",
		Username:  "backup",
		Secret:    "s3cret-" + name,
	})
	require.NoError(t, err)

	db := &types.Database{ID: uuid.New(), ServerID: server.ID, Name: name}
	require.NoError(t, f.repos.Databases.Save(ctx, db))

	loaded, err := f.repos.Databases.FindByID(ctx, db.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) addSchedule(t *testing.T, db *types.Database, enabled, upload bool, retention int) *types.BackupSchedule {
	t.Helper()
	schedule := &types.BackupSchedule{
		ID:             uuid.New(),
		DatabaseID:     db.ID,
		Frequency:      types.FrequencyDaily,
		Hour:           2,
		RetentionCount: retention,
		Enabled:        enabled,
		UploadToRemote: upload,
	}
	require.NoError(t, f.repos.Schedules.Save(context.Background(), schedule))
	return schedule
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			result = append(result, e.Name())
		}
	}
	return result
}
