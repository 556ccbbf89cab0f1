package database

import (
	"context"
	"github.com/google/uuid"
	"nexdb/internal/types"
)

type ProjectRepository interface {
	Save(ctx context.Context, project *types.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.Project, error)
	FindAll(ctx context.Context) ([]*types.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ServerRepository interface {
	Save(ctx context.Context, server *types.DatabaseServer) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.DatabaseServer, error)
	FindAll(ctx context.Context) ([]*types.DatabaseServer, error)
	UpdateSecret(ctx context.Context, id uuid.UUID, encryptedSecret string) error
	// ClearProject leaves the servers of a deleted project unscoped
	ClearProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DatabaseRepository interface {
	Save(ctx context.Context, db *types.Database) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.Database, error)
	FindAll(ctx context.Context) ([]*types.Database, error)
	FindByServerID(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type BackupRepository interface {
	Save(ctx context.Context, record *types.BackupRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.BackupRecord, error)
	FindAll(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ScheduleRepository interface {
	Save(ctx context.Context, schedule *types.BackupSchedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.BackupSchedule, error)
	FindAll(ctx context.Context) ([]*types.BackupSchedule, error)
	FindEnabled(ctx context.Context) ([]*types.BackupSchedule, error)
	FindByDatabaseID(ctx context.Context, databaseID uuid.UUID) ([]*types.BackupSchedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NetworkAccessRepository interface {
	Save(ctx context.Context, na *types.NetworkAccess) error
	FindByServerID(ctx context.Context, serverID uuid.UUID) ([]*types.NetworkAccess, error)
	Find(ctx context.Context, serverID uuid.UUID, ip string) (*types.NetworkAccess, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// Repositories groups every repository so a single backend can be selected at composition time
type Repositories struct {
	Projects      ProjectRepository
	Servers       ServerRepository
	Databases     DatabaseRepository
	Backups       BackupRepository
	Schedules     ScheduleRepository
	NetworkAccess NetworkAccessRepository
}
