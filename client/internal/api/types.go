package api

import (
	"github.com/google/uuid"
	"nexdb/internal/types"
	"time"
)

type (
	Project              = types.Project
	Server               = types.DatabaseServer
	Database             = types.Database
	Backup               = types.BackupRecord
	BackupResult         = types.BackupResult
	Schedule             = types.BackupSchedule
	ConnectionTestResult = types.ConnectionTestResult
	RemoteDatabase       = types.RemoteDatabase
	DatabaseUser         = types.DatabaseUser

	CreateProjectParams  = types.CreateProjectParams
	UpdateProjectParams  = types.UpdateProjectParams
	RegisterServerParams = types.RegisterServerParams
	AddDatabaseParams    = types.AddDatabaseParams
	CreateDatabaseParams = types.CreateDatabaseParams
	CreateUserParams     = types.CreateUserParams
	CreateBackupParams   = types.CreateBackupParams
	ScheduleParams       = types.ScheduleParams

	ListBackupsParams struct {
		DatabaseID uuid.UUID
		Status     string
		Limit      int
	}

	// MaterializedEntry is one trigger installed by the server's scheduler
	MaterializedEntry struct {
		ScheduleID uuid.UUID `json:"schedule_id"`
		DatabaseID uuid.UUID `json:"database_id"`
		Engine     string    `json:"engine"`
		Database   string    `json:"database"`
		Expression string    `json:"expression"`
		Upload     bool      `json:"upload"`
		NextRun    time.Time `json:"next_run"`
	}
)
