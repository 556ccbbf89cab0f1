package types

import (
	"github.com/google/uuid"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"

	DefaultRetentionCount = 7
)

type BackupSchedule struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey"`
	DatabaseID     uuid.UUID  `json:"database_id" gorm:"not null;index"`
	Frequency      Frequency  `json:"frequency" gorm:"not null"`
	Expression     string     `json:"expression,omitempty"`
	Hour           int        `json:"hour"`
	Minute         int        `json:"minute"`
	DayOfWeek      *int       `json:"day_of_week,omitempty"`
	DayOfMonth     *int       `json:"day_of_month,omitempty"`
	RetentionCount int        `json:"retention_count"`
	Enabled        bool       `json:"enabled"`
	UploadToRemote bool       `json:"upload_to_remote"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Database       *Database  `json:"database,omitempty" gorm:"foreignKey:DatabaseID"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty" gorm:"-"`
	Description    string     `json:"description,omitempty" gorm:"-"`
}

func IntPtr(v int) *int {
	return &v
}
