package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	errors2 "github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nexdb/internal/backup"
	"nexdb/internal/database"
	"nexdb/internal/eventbus"
	"nexdb/internal/metrics"
	"nexdb/internal/storage"
	"nexdb/internal/types"
	"nexdb/logger"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type (
	BackupService interface {
		// CreateBackup runs one backup now. A failed dump is returned as error alongside the result.
		CreateBackup(ctx context.Context, params types.CreateBackupParams) (types.BackupResult, error)
		// RunScheduled is the action of a fired schedule trigger
		RunScheduled(ctx context.Context, scheduleID uuid.UUID) error
		// RunAllDue backs up every database with an enabled schedule once, isolating failures
		RunAllDue(ctx context.Context) ([]types.BackupResult, error)
		ListBackups(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error)
		GetBackup(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error)
		DeleteBackup(ctx context.Context, id uuid.UUID) error
		Download(ctx context.Context, id uuid.UUID) (*types.File, error)
	}

	BackupOptions struct {
		BackupDir    string
		Timeout      time.Duration
		MinFreeBytes uint64
		AutoUpload   bool
		Concurrency  int
	}

	backupService struct {
		opts        BackupOptions
		databases   database.DatabaseRepository
		schedules   database.ScheduleRepository
		credentials CredentialStore
		records     RecordKeeper
		executor    backup.Executor
		uploader    storage.Uploader
		bus         eventbus.Bus
		metrics     *metrics.Metrics
		now         func() time.Time

		mu       sync.Mutex
		dbLocks  map[uuid.UUID]*sync.Mutex
		reserved map[string]bool
	}

	// job is one resolved backup request
	job struct {
		db        *types.Database
		schedule  *types.BackupSchedule
		upload    bool
		createdBy string
	}
)

func NewBackupService(
	opts BackupOptions,
	databases database.DatabaseRepository,
	schedules database.ScheduleRepository,
	credentials CredentialStore,
	records RecordKeeper,
	executor backup.Executor,
	uploader storage.Uploader,
	bus eventbus.Bus,
	m *metrics.Metrics) BackupService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &backupService{
		opts:        opts,
		databases:   databases,
		schedules:   schedules,
		credentials: credentials,
		records:     records,
		executor:    executor,
		uploader:    uploader,
		bus:         bus,
		metrics:     m,
		now:         time.Now,
		dbLocks:     make(map[uuid.UUID]*sync.Mutex),
		reserved:    make(map[string]bool),
	}
}

func (b *backupService) CreateBackup(ctx context.Context, params types.CreateBackupParams) (types.BackupResult, error) {
	db, err := b.databases.FindByID(ctx, params.DatabaseID)
	if err != nil {
		return types.BackupResult{}, err
	}

	j := job{db: db, upload: params.Upload, createdBy: params.CreatedBy}
	if params.ScheduleID != uuid.Nil {
		schedule, err := b.schedules.FindByID(ctx, params.ScheduleID)
		if err != nil {
			return types.BackupResult{}, err
		}
		if schedule.DatabaseID != db.ID {
			return types.BackupResult{}, &types.InvalidRequestError{
				Reason: fmt.Sprintf("schedule %s does not belong to database %s", schedule.ID, db.ID),
			}
		}
		j.schedule = schedule
		j.upload = j.upload || schedule.UploadToRemote
	}
	if j.createdBy == "" {
		j.createdBy = "api"
	}

	result := b.run(ctx, j)
	return result, result.Err
}

func (b *backupService) RunScheduled(ctx context.Context, scheduleID uuid.UUID) error {
	schedule, err := b.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return err
	}

	if !schedule.Enabled {
		logger.Warn("skipping disabled schedule", zap.String("schedule", scheduleID.String()))
		return nil
	}

	db, err := b.databases.FindByID(ctx, schedule.DatabaseID)
	if err != nil {
		return err
	}

	result := b.run(ctx, job{
		db:        db,
		schedule:  schedule,
		upload:    schedule.UploadToRemote,
		createdBy: "scheduler",
	})
	return result.Err
}

func (b *backupService) RunAllDue(ctx context.Context) ([]types.BackupResult, error) {
	ctx = context.WithoutCancel(ctx)
	schedules, err := b.schedules.FindEnabled(ctx)
	if err != nil {
		return nil, err
	}

	// one job per database; a schedule asking for upload wins
	jobs := make([]job, 0)
	index := make(map[uuid.UUID]int)
	for _, schedule := range schedules {
		if i, ok := index[schedule.DatabaseID]; ok {
			if schedule.UploadToRemote && !jobs[i].upload {
				jobs[i].upload = true
				jobs[i].schedule = schedule
			}
			continue
		}

		index[schedule.DatabaseID] = len(jobs)
		jobs = append(jobs, job{
			schedule:  schedule,
			upload:    schedule.UploadToRemote,
			createdBy: "run-due",
		})
	}

	results := make([]types.BackupResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i := range jobs {
		g.Go(func() error {
			j := jobs[i]
			db, err := b.databases.FindByID(gctx, j.schedule.DatabaseID)
			if err != nil {
				results[i] = failedResult(j.schedule.DatabaseID, "", err)
				return nil
			}

			j.db = db
			results[i] = b.run(gctx, j)
			return nil
		})
	}
	_ = g.Wait()

	failed := lo.CountBy(results, func(r types.BackupResult) bool { return !r.Succeeded() })
	logger.Info("run-due finished",
		zap.Int("databases", len(results)),
		zap.Int("failed", failed))
	return results, nil
}

func (b *backupService) ListBackups(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	return b.records.List(ctx, filter)
}

func (b *backupService) GetBackup(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	return b.records.Get(ctx, id)
}

func (b *backupService) DeleteBackup(ctx context.Context, id uuid.UUID) error {
	return b.records.Delete(ctx, id)
}

func (b *backupService) Download(ctx context.Context, id uuid.UUID) (*types.File, error) {
	record, err := b.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status != types.BackupStatusCompleted {
		return nil, &types.NotReadyError{ID: record.ID.String(), Status: record.Status}
	}

	f, err := types.OpenFile(record.FilePath)
	if err == nil {
		return f, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if record.Location == types.BackupLocationRemote && record.RemotePath != "" {
		return b.uploader.Download(ctx, record.RemotePath)
	}
	return nil, &types.NotFoundError{Kind: "backup file", ID: record.Filename}
}

// run performs one backup. Cancelling ctx does not stop a dump once queued; only the
// configured timeout does.
func (b *backupService) run(ctx context.Context, j job) types.BackupResult {
	ctx = context.WithoutCancel(ctx)
	result := types.BackupResult{DatabaseID: j.db.ID, DatabaseName: j.db.Name}

	lock := b.lockFor(j.db.ID)
	lock.Lock()
	defer lock.Unlock()

	if j.db.Server == nil {
		return failedResult(j.db.ID, j.db.Name, errors2.Errorf("database %s has no server", j.db.ID))
	}

	creds, err := b.credentials.CredentialsFor(j.db.Server)
	if err != nil {
		return failedResult(j.db.ID, j.db.Name, err)
	}

	startedAt := b.now()
	path, filename, err := b.allocate(j.db, startedAt)
	if err != nil {
		return failedResult(j.db.ID, j.db.Name, err)
	}
	defer b.release(path)

	record := &types.BackupRecord{
		DatabaseID:   j.db.ID,
		DatabaseName: j.db.Name,
		Engine:       j.db.Server.Engine,
		Filename:     filename,
		FilePath:     path,
		CreatedBy:    j.createdBy,
		CreatedAt:    startedAt,
	}
	if j.schedule != nil {
		record.ScheduleID = j.schedule.ID
	}
	if err := b.records.Create(ctx, record); err != nil {
		return failedResult(j.db.ID, j.db.Name, err)
	}
	result.Record = record
	b.publish(record, eventbus.Info, "backup queued")

	record, err = b.records.UpdateStatus(ctx, record.ID, types.BackupStatusInProgress)
	if err != nil {
		result.Err, result.Error = err, err.Error()
		return result
	}
	result.Record = record
	b.publish(record, eventbus.Info, "backup started")
	b.metrics.BackupStarted()

	dumpResult, dumpErr := b.dump(ctx, record, creds)
	if dumpErr != nil {
		return b.fail(ctx, result, dumpErr)
	}

	record, err = b.records.UpdateStatus(ctx, record.ID, types.BackupStatusCompleted, func(r *types.BackupRecord) {
		r.SizeBytes = dumpResult.Size
	})
	if err != nil {
		b.metrics.BackupFinished(creds.Engine.String(), string(types.BackupStatusFailed), dumpResult.Duration, 0)
		result.Err, result.Error = err, err.Error()
		return result
	}
	result.Record = record
	b.metrics.BackupFinished(creds.Engine.String(), string(record.Status), dumpResult.Duration, record.SizeBytes)
	b.publish(record, eventbus.Success, "backup completed")

	b.maybeUpload(ctx, j, &result)

	if j.schedule != nil {
		b.prune(ctx, j.schedule)
	}
	b.publish(result.Record, eventbus.Complete, "done")
	return result
}

func (b *backupService) dump(ctx context.Context, record *types.BackupRecord, creds types.Credentials) (backup.Result, error) {
	if err := backup.CheckFreeSpace(ctx, b.opts.BackupDir, b.opts.MinFreeBytes); err != nil {
		return backup.Result{}, err
	}

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	return b.executor.Execute(ctx, backup.Params{
		Engine:      creds.Engine,
		Database:    record.DatabaseName,
		Credentials: creds,
		Destination: record.FilePath,
	})
}

func (b *backupService) fail(ctx context.Context, result types.BackupResult, cause error) types.BackupResult {
	record := result.Record
	logger.Error("backup failed",
		zap.String("database", record.DatabaseName),
		zap.String("record", record.ID.String()),
		zap.Error(cause))

	if err := os.Remove(record.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial dump",
			zap.String("file", record.FilePath),
			zap.Error(err))
	}

	// the record must not stay in_progress even when the caller went away
	updated, err := b.records.UpdateStatus(context.WithoutCancel(ctx), record.ID, types.BackupStatusFailed, func(r *types.BackupRecord) {
		r.Error = cause.Error()
	})
	if err != nil {
		logger.Error("failed to mark backup as failed", zap.Error(err))
	} else {
		result.Record = updated
	}

	b.metrics.BackupFinished(record.Engine.String(), string(types.BackupStatusFailed), 0, 0)
	b.publish(result.Record, eventbus.Error, cause.Error())
	result.Err, result.Error = cause, cause.Error()
	return result
}

// maybeUpload uploads on explicit request, or when auto upload is on and storage is configured.
// Upload failures never change the completed status.
func (b *backupService) maybeUpload(ctx context.Context, j job, result *types.BackupResult) {
	explicit := j.upload
	if !explicit && !(b.opts.AutoUpload && b.uploader.Enabled()) {
		return
	}

	record := result.Record
	key := storage.FlatKey(record.DatabaseName, record.CreatedAt)
	if j.schedule != nil && j.db.Server.ProjectID != uuid.Nil {
		key = storage.ScopedKey(j.db.Server.ProjectID, j.db.ID, record.Filename)
	}

	remote, err := b.uploader.Upload(ctx, record.FilePath, key)
	if err != nil {
		if !explicit && errors.Is(err, types.ErrRemoteDisabled) {
			return
		}
		b.metrics.Upload(false)
		result.UploadErr, result.UploadError = err, err.Error()
		b.publish(record, eventbus.Error, "upload failed: "+err.Error())
		return
	}

	b.metrics.Upload(true)
	updated, err := b.records.SetRemote(ctx, record.ID, remote)
	if err != nil {
		result.UploadErr, result.UploadError = err, err.Error()
		return
	}
	result.Record = updated
	b.publish(updated, eventbus.Success, "uploaded to "+remote)
}

// prune deletes the oldest completed backups made by the schedule beyond its retention
func (b *backupService) prune(ctx context.Context, schedule *types.BackupSchedule) {
	if schedule.RetentionCount <= 0 {
		return
	}

	records, err := b.records.List(ctx, types.BackupFilter{
		DatabaseID: schedule.DatabaseID,
		Status:     types.BackupStatusCompleted,
	})
	if err != nil {
		logger.Warn("retention lookup failed", zap.Error(err))
		return
	}

	scheduled := lo.Filter(records, func(r *types.BackupRecord, _ int) bool {
		return r.ScheduleID == schedule.ID
	})
	if len(scheduled) <= schedule.RetentionCount {
		return
	}

	removed := 0
	for _, r := range scheduled[schedule.RetentionCount:] {
		if err := b.records.Delete(ctx, r.ID); err != nil {
			logger.Warn("failed to prune backup",
				zap.String("id", r.ID.String()),
				zap.Error(err))
			continue
		}
		removed++
	}
	b.metrics.Pruned(removed)
	logger.Info("retention applied",
		zap.String("database", schedule.DatabaseID.String()),
		zap.String("schedule", schedule.ID.String()),
		zap.Int("kept", schedule.RetentionCount),
		zap.Int("removed", removed))
}

// allocate picks a file name nobody else is using, adding _1, _2 when the same second is taken
func (b *backupService) allocate(db *types.Database, t time.Time) (string, string, error) {
	if err := os.MkdirAll(b.opts.BackupDir, 0o700); err != nil {
		return "", "", errors2.Wrap(err, "failed to create backup directory")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	base := backup.Filename(db.Name, db.Server.Engine, t)
	for n := 0; n < 1000; n++ {
		filename := backup.WithSuffix(base, n)
		path := filepath.Join(b.opts.BackupDir, filename)
		if b.reserved[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		b.reserved[path] = true
		return path, filename, nil
	}
	return "", "", errors2.Errorf("no free file name for %s", base)
}

func (b *backupService) release(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reserved, path)
}

func (b *backupService) lockFor(databaseID uuid.UUID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, ok := b.dbLocks[databaseID]
	if !ok {
		lock = &sync.Mutex{}
		b.dbLocks[databaseID] = lock
	}
	return lock
}

func (b *backupService) publish(record *types.BackupRecord, evType eventbus.Type, message string) {
	if b.bus == nil || record == nil {
		return
	}
	b.bus.BroadcastWithData(record.DatabaseID.String(), evType, message, record)
}

func failedResult(databaseID uuid.UUID, name string, err error) types.BackupResult {
	return types.BackupResult{
		DatabaseID:   databaseID,
		DatabaseName: name,
		Err:          err,
		Error:        err.Error(),
	}
}
