package types

import (
	"github.com/google/uuid"
)

type (
	CreateProjectParams struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description"`
	}

	UpdateProjectParams struct {
		Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
		Description *string `json:"description"`
	}

	RegisterServerParams struct {
		ProjectID   uuid.UUID `json:"project_id"`
		Name        string    `json:"name" validate:"required,max=100"`
		Description string    `json:"description"`
		Engine      string    `json:"engine" validate:"required"`
		Host        string    `json:"host" validate:"required,hostname_rfc1123|ip"`
		Port        int       `json:"port" validate:"omitempty,min=1,max=65535"`
		Username    string    `json:"username" validate:"required,max=100"`
		Secret      string    `json:"secret"`

		// SkipConnectionTest registers the server even when it cannot be reached yet
		SkipConnectionTest bool `json:"skip_connection_test"`
	}

	AddDatabaseParams struct {
		Name        string `json:"name" validate:"required,max=64,excludesall=/\\%"`
		Description string `json:"description"`
	}

	// CreateDatabaseParams creates the database on the server and registers it for backups
	CreateDatabaseParams struct {
		Name        string `json:"name" validate:"required,max=63"`
		Description string `json:"description"`
	}

	// CreateUserParams creates a login on the server, granting it every privilege on Database when set
	CreateUserParams struct {
		Username string `json:"username" validate:"required,max=63"`
		Password string `json:"password" validate:"required,min=8"`
		Database string `json:"database" validate:"omitempty,max=63"`
	}

	CreateBackupParams struct {
		DatabaseID uuid.UUID `json:"database_id"`
		Upload     bool      `json:"upload"`
		ScheduleID uuid.UUID `json:"schedule_id"`
		CreatedBy  string    `json:"created_by"`
	}

	ScheduleParams struct {
		DatabaseID     uuid.UUID `json:"database_id" validate:"required"`
		Frequency      Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
		Expression     string    `json:"expression"`
		Hour           int       `json:"hour" validate:"min=0,max=23"`
		Minute         int       `json:"minute" validate:"min=0,max=59"`
		DayOfWeek      *int      `json:"day_of_week"`
		DayOfMonth     *int      `json:"day_of_month"`
		RetentionCount *int      `json:"retention_count" validate:"omitempty,min=0"`
		Enabled        *bool     `json:"enabled"`
		UploadToRemote bool      `json:"upload_to_remote"`
	}

	NetworkAccessParams struct {
		IP string `json:"ip" validate:"required,ip"`
	}

	DatabaseUser struct {
		ServerID uuid.UUID `json:"server_id"`
		Username string    `json:"username"`
		Database string    `json:"database,omitempty"`
	}

	// RemoteDatabase is a database found on a server, registered for backups or not
	RemoteDatabase struct {
		Name       string    `json:"name"`
		Registered bool      `json:"registered"`
		DatabaseID uuid.UUID `json:"database_id,omitempty"`
	}

	ConnectionTestResult struct {
		Engine    Engine `json:"engine"`
		Version   string `json:"version"`
		LatencyMS int64  `json:"latency_ms"`
	}
)
