package service

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nexdb/internal/database"
	"nexdb/internal/types"
	"nexdb/logger"
	"os"
	"time"
)

// RecordKeeper persists backup records and guards their status transitions
type RecordKeeper interface {
	Create(ctx context.Context, record *types.BackupRecord) error
	UpdateStatus(ctx context.Context, id uuid.UUID, next types.BackupStatus, apply ...func(*types.BackupRecord)) (*types.BackupRecord, error)
	SetRemote(ctx context.Context, id uuid.UUID, remotePath string) (*types.BackupRecord, error)
	List(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type recordKeeper struct {
	repository database.BackupRepository
}

func NewRecordKeeper(repo database.BackupRepository) RecordKeeper {
	return &recordKeeper{repository: repo}
}

func (r *recordKeeper) Create(ctx context.Context, record *types.BackupRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = types.BackupStatusPending
	}
	if record.Location == "" {
		record.Location = types.BackupLocationLocal
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return r.repository.Save(ctx, record)
}

func (r *recordKeeper) UpdateStatus(ctx context.Context, id uuid.UUID, next types.BackupStatus, apply ...func(*types.BackupRecord)) (*types.BackupRecord, error) {
	record, err := r.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !record.Status.CanTransitionTo(next) {
		return nil, &types.InvalidTransitionError{From: record.Status, To: next}
	}

	record.Status = next
	if next.Terminal() {
		now := time.Now()
		record.CompletedAt = &now
	}
	for _, fn := range apply {
		fn(record)
	}

	if err := r.repository.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *recordKeeper) SetRemote(ctx context.Context, id uuid.UUID, remotePath string) (*types.BackupRecord, error) {
	record, err := r.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	record.Location = types.BackupLocationRemote
	record.RemotePath = remotePath
	if err := r.repository.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *recordKeeper) List(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	return r.repository.FindAll(ctx, filter)
}

func (r *recordKeeper) Get(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	return r.repository.FindByID(ctx, id)
}

func (r *recordKeeper) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := r.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if record.FilePath != "" {
		if err := os.Remove(record.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err := r.repository.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("backup deleted",
		zap.String("id", id.String()),
		zap.String("file", record.FilePath))
	return nil
}
