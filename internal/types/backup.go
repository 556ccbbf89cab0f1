package types

import (
	"github.com/google/uuid"
	"time"
)

type (
	BackupStatus   string
	BackupLocation string

	BackupRecord struct {
		ID           uuid.UUID      `json:"id" gorm:"primaryKey"`
		DatabaseID   uuid.UUID      `json:"database_id" gorm:"not null;index"`
		DatabaseName string         `json:"database_name"`
		Engine       Engine         `json:"engine"`
		Filename     string         `json:"filename"`
		FilePath     string         `json:"file_path"`
		SizeBytes    int64          `json:"size_bytes"`
		Status       BackupStatus   `json:"status" gorm:"index"`
		Location     BackupLocation `json:"location"`
		RemotePath   string         `json:"remote_path,omitempty"`
		ScheduleID   uuid.UUID      `json:"schedule_id"`
		Error        string         `json:"error,omitempty"`
		CreatedBy    string         `json:"created_by"`
		CreatedAt    time.Time      `json:"created_at" gorm:"index"`
		UpdatedAt    time.Time      `json:"updated_at"`
		CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	}

	BackupFilter struct {
		DatabaseID uuid.UUID
		Status     BackupStatus
		Limit      int
	}

	// BackupResult is the outcome of one orchestrated backup. Error is set when the
	// dump failed; UploadError is set when the dump succeeded but the upload did not.
	BackupResult struct {
		DatabaseID   uuid.UUID     `json:"database_id"`
		DatabaseName string        `json:"database_name"`
		Record       *BackupRecord `json:"record,omitempty"`
		Error        string        `json:"error,omitempty"`
		UploadError  string        `json:"upload_error,omitempty"`

		Err       error `json:"-"`
		UploadErr error `json:"-"`
	}
)

const (
	BackupStatusPending    BackupStatus = "pending"
	BackupStatusInProgress BackupStatus = "in_progress"
	BackupStatusCompleted  BackupStatus = "completed"
	BackupStatusFailed     BackupStatus = "failed"

	BackupLocationLocal  BackupLocation = "local"
	BackupLocationRemote BackupLocation = "remote"
)

var backupTransitions = map[BackupStatus][]BackupStatus{
	BackupStatusPending:    {BackupStatusInProgress, BackupStatusCompleted, BackupStatusFailed},
	BackupStatusInProgress: {BackupStatusCompleted, BackupStatusFailed},
}

func (s BackupStatus) CanTransitionTo(next BackupStatus) bool {
	for _, allowed := range backupTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BackupStatus) Terminal() bool {
	return s == BackupStatusCompleted || s == BackupStatusFailed
}

func (s BackupStatus) Valid() bool {
	switch s {
	case BackupStatusPending, BackupStatusInProgress, BackupStatusCompleted, BackupStatusFailed:
		return true
	}
	return false
}

func (r *BackupRecord) Manual() bool {
	return r.ScheduleID == uuid.Nil
}

func (r BackupResult) Succeeded() bool {
	return r.Err == nil && r.Record != nil && r.Record.Status == BackupStatusCompleted
}
