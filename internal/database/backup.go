package database

import (
	"context"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"nexdb/internal/types"
)

type (
	scheduleRepository struct {
		db *gorm.DB
	}

	backupRepository struct {
		db *gorm.DB
	}
)

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (s scheduleRepository) Save(ctx context.Context, schedule *types.BackupSchedule) error {
	return s.db.WithContext(ctx).Omit("Database").Save(schedule).Error
}

func (s scheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.BackupSchedule, error) {
	schedule := &types.BackupSchedule{}
	err := s.withDatabase(ctx).Where("id = ?", id).First(schedule).Error
	if err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return schedule, nil
}

func (s scheduleRepository) FindAll(ctx context.Context) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	err := s.withDatabase(ctx).Order("created_at asc").Find(&result).Error
	return result, err
}

func (s scheduleRepository) FindEnabled(ctx context.Context) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	err := s.withDatabase(ctx).Where("enabled = ?", true).Order("created_at asc").Find(&result).Error
	return result, err
}

func (s scheduleRepository) FindByDatabaseID(ctx context.Context, databaseID uuid.UUID) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	err := s.withDatabase(ctx).Where("database_id = ?", databaseID).Order("created_at asc").Find(&result).Error
	return result, err
}

func (s scheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&types.BackupSchedule{}).Error
}

func (s scheduleRepository) withDatabase(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Database").Preload("Database.Server")
}

func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

func (b backupRepository) Save(ctx context.Context, record *types.BackupRecord) error {
	return b.db.WithContext(ctx).Save(record).Error
}

func (b backupRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	record := &types.BackupRecord{}
	err := b.db.WithContext(ctx).Where("id = ?", id).First(record).Error
	if err != nil {
		return nil, notFound(err, "backup", id)
	}
	return record, nil
}

func (b backupRepository) FindAll(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	result := make([]*types.BackupRecord, 0)
	query := b.db.WithContext(ctx).Order("created_at desc")
	if filter.DatabaseID != uuid.Nil {
		query = query.Where("database_id = ?", filter.DatabaseID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	err := query.Find(&result).Error
	return result, err
}

func (b backupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).Where("id = ?", id).Delete(&types.BackupRecord{}).Error
}
