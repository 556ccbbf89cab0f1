// Package apitest provides an in-memory api.Service for command tests
package apitest

import (
	"context"
	"github.com/google/uuid"
	"nexdb/client/internal/api"
	"nexdb/internal/types"
	"sync"
	"time"
)

// Service records the requests it receives. Methods it does not override panic through the
// nil embedded interface.
type Service struct {
	api.Service

	mu        sync.Mutex
	Databases []api.Database
	BackupErr error

	Servers   []api.RegisterServerParams
	Backups   []api.CreateBackupParams
	Schedules []api.ScheduleParams

	Projects        []api.CreateProjectParams
	ProjectUpdates  []api.UpdateProjectParams
	DeletedProjects []uuid.UUID
	Created         []api.CreateDatabaseParams
	Users           []api.CreateUserParams
}

func (s *Service) Factory() (api.Service, error) {
	return s, nil
}

func (s *Service) RegisterServer(_ context.Context, params api.RegisterServerParams) (api.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Servers = append(s.Servers, params)
	return api.Server{ID: uuid.New(), Name: params.Name, Engine: types.Engine(params.Engine)}, nil
}

func (s *Service) ListDatabases(_ context.Context, serverID uuid.UUID) ([]api.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]api.Database, 0, len(s.Databases))
	for _, db := range s.Databases {
		if serverID == uuid.Nil || db.ServerID == serverID {
			result = append(result, db)
		}
	}
	return result, nil
}

func (s *Service) CreateBackup(_ context.Context, params api.CreateBackupParams) (api.BackupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Backups = append(s.Backups, params)

	status := types.BackupStatusCompleted
	if s.BackupErr != nil {
		status = types.BackupStatusFailed
	}
	record := &api.Backup{
		ID:         uuid.New(),
		DatabaseID: params.DatabaseID,
		Filename:   "dump.sql",
		Status:     status,
		ScheduleID: params.ScheduleID,
		CreatedBy:  params.CreatedBy,
		CreatedAt:  time.Now(),
	}
	return api.BackupResult{DatabaseID: params.DatabaseID, Record: record}, s.BackupErr
}

func (s *Service) CreateSchedule(_ context.Context, params api.ScheduleParams) (api.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Schedules = append(s.Schedules, params)
	return api.Schedule{ID: uuid.New(), DatabaseID: params.DatabaseID, Frequency: params.Frequency}, nil
}

func (s *Service) CreateProject(_ context.Context, params api.CreateProjectParams) (api.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Projects = append(s.Projects, params)
	return api.Project{ID: uuid.New(), Name: params.Name, Description: params.Description}, nil
}

func (s *Service) UpdateProject(_ context.Context, projectID uuid.UUID, params api.UpdateProjectParams) (api.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProjectUpdates = append(s.ProjectUpdates, params)
	project := api.Project{ID: projectID}
	if params.Name != nil {
		project.Name = *params.Name
	}
	return project, nil
}

func (s *Service) DeleteProject(_ context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeletedProjects = append(s.DeletedProjects, projectID)
	return nil
}

func (s *Service) CreateRemoteDatabase(_ context.Context, serverID uuid.UUID, params api.CreateDatabaseParams) (api.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Created = append(s.Created, params)
	db := api.Database{ID: uuid.New(), ServerID: serverID, Name: params.Name, Description: params.Description}
	s.Databases = append(s.Databases, db)
	return db, nil
}

func (s *Service) CreateDatabaseUser(_ context.Context, serverID uuid.UUID, params api.CreateUserParams) (api.DatabaseUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users = append(s.Users, params)
	return api.DatabaseUser{ServerID: serverID, Username: params.Username, Database: params.Database}, nil
}

// SeedDatabase registers a database named name on a new server of the given engine
func (s *Service) SeedDatabase(name string, engine types.Engine) api.Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	server := &api.Server{ID: uuid.New(), Name: string(engine) + "-primary", Engine: engine}
	db := api.Database{ID: uuid.New(), ServerID: server.ID, Name: name, Server: server}
	s.Databases = append(s.Databases, db)
	return db
}
