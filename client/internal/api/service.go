package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"io"
	"net/http"
	"strconv"
)

type (
	Service interface {
		Pinger
		ProjectService
		ServerService
		BackupService
		ScheduleService
		TestStorage(ctx context.Context) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	ProjectService interface {
		CreateProject(ctx context.Context, params CreateProjectParams) (Project, error)
		ListProjects(ctx context.Context) ([]Project, error)
		UpdateProject(ctx context.Context, projectID uuid.UUID, params UpdateProjectParams) (Project, error)
		DeleteProject(ctx context.Context, projectID uuid.UUID) error
	}

	ServerService interface {
		RegisterServer(ctx context.Context, params RegisterServerParams) (Server, error)
		ListServers(ctx context.Context) ([]Server, error)
		TestServer(ctx context.Context, serverID uuid.UUID) (ConnectionTestResult, error)
		DeleteServer(ctx context.Context, serverID uuid.UUID) error
		AddDatabase(ctx context.Context, serverID uuid.UUID, params AddDatabaseParams) (Database, error)
		ListDatabases(ctx context.Context, serverID uuid.UUID) ([]Database, error)
		ListRemoteDatabases(ctx context.Context, serverID uuid.UUID) ([]RemoteDatabase, error)
		CreateRemoteDatabase(ctx context.Context, serverID uuid.UUID, params CreateDatabaseParams) (Database, error)
		CreateDatabaseUser(ctx context.Context, serverID uuid.UUID, params CreateUserParams) (DatabaseUser, error)
	}

	BackupService interface {
		CreateBackup(ctx context.Context, params CreateBackupParams) (BackupResult, error)
		RunAllDue(ctx context.Context) ([]BackupResult, error)
		ListBackups(ctx context.Context, params ListBackupsParams) ([]Backup, error)
		DeleteBackup(ctx context.Context, backupID uuid.UUID) error
		DownloadBackup(ctx context.Context, backupID uuid.UUID) (io.ReadCloser, error)
	}

	ScheduleService interface {
		CreateSchedule(ctx context.Context, params ScheduleParams) (Schedule, error)
		ListSchedules(ctx context.Context) ([]Schedule, error)
		DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error
		ListMaterialized(ctx context.Context) ([]MaterializedEntry, error)
	}
)

type service struct {
	apiClient Client
}

func NewService(apiClient Client) Service {
	return service{apiClient: apiClient}
}

func (s service) Ping(ctx context.Context) error {
	if err := s.apiClient.Do(ctx, Params{Method: http.MethodGet, Path: "h"}); err != nil {
		return err
	}

	// /h is public, so the token is checked against a protected route
	return s.apiClient.Do(ctx, Params{Method: http.MethodGet, Path: "projects"})
}

func (s service) ListProjects(ctx context.Context) ([]Project, error) {
	var response struct {
		Data []Project `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "projects",
		Response: &response,
	})
	return response.Data, err
}

func (s service) CreateProject(ctx context.Context, params CreateProjectParams) (Project, error) {
	var response struct {
		Data Project `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "projects",
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) UpdateProject(ctx context.Context, projectID uuid.UUID, params UpdateProjectParams) (Project, error) {
	var response struct {
		Data Project `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPut,
		Path:     fmt.Sprintf("projects/%s", projectID),
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("projects/%s", projectID),
	})
}

func (s service) RegisterServer(ctx context.Context, params RegisterServerParams) (Server, error) {
	var response struct {
		Data Server `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "servers",
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) ListServers(ctx context.Context) ([]Server, error) {
	var response struct {
		Data []Server `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "servers",
		Response: &response,
	})
	return response.Data, err
}

func (s service) TestServer(ctx context.Context, serverID uuid.UUID) (ConnectionTestResult, error) {
	var response struct {
		Data ConnectionTestResult `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("servers/%s/test", serverID),
		Response: &response,
	})
	return response.Data, err
}

func (s service) DeleteServer(ctx context.Context, serverID uuid.UUID) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("servers/%s", serverID),
	})
}

func (s service) AddDatabase(ctx context.Context, serverID uuid.UUID, params AddDatabaseParams) (Database, error) {
	var response struct {
		Data Database `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("servers/%s/databases", serverID),
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) ListRemoteDatabases(ctx context.Context, serverID uuid.UUID) ([]RemoteDatabase, error) {
	var response struct {
		Data []RemoteDatabase `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("servers/%s/remote-databases", serverID),
		Response: &response,
	})
	return response.Data, err
}

// CreateRemoteDatabase creates the database on the server itself and registers it for backups
func (s service) CreateRemoteDatabase(ctx context.Context, serverID uuid.UUID, params CreateDatabaseParams) (Database, error) {
	var response struct {
		Data Database `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("servers/%s/remote-databases", serverID),
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) CreateDatabaseUser(ctx context.Context, serverID uuid.UUID, params CreateUserParams) (DatabaseUser, error) {
	var response struct {
		Data DatabaseUser `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("servers/%s/users", serverID),
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

// ListDatabases lists the databases of serverID, or every database when serverID is uuid.Nil
func (s service) ListDatabases(ctx context.Context, serverID uuid.UUID) ([]Database, error) {
	var response struct {
		Data []Database `json:"data"`
	}

	path := "databases"
	if serverID != uuid.Nil {
		path = fmt.Sprintf("servers/%s/databases", serverID)
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     path,
		Response: &response,
	})
	return response.Data, err
}

// CreateBackup runs a backup on the server and waits for it to finish. A failed dump still
// returns the result the server recorded alongside the error.
func (s service) CreateBackup(ctx context.Context, params CreateBackupParams) (BackupResult, error) {
	var response struct {
		Data BackupResult `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("databases/%s/backups", params.DatabaseID),
		Body:     params,
		Response: &response,
	})
	if err != nil {
		var respErr *ResponseError
		if errors.As(err, &respErr) && len(respErr.Data) > 0 {
			_ = json.Unmarshal(respErr.Data, &response.Data)
		}
		return response.Data, err
	}
	return response.Data, nil
}

func (s service) RunAllDue(ctx context.Context) ([]BackupResult, error) {
	var response struct {
		Data []BackupResult `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "backups/run-due",
		Response: &response,
	})
	return response.Data, err
}

func (s service) ListBackups(ctx context.Context, params ListBackupsParams) ([]Backup, error) {
	var response struct {
		Data []Backup `json:"data"`
	}

	query := make(map[string]string)
	if params.DatabaseID != uuid.Nil {
		query["database_id"] = params.DatabaseID.String()
	}
	if params.Status != "" {
		query["status"] = params.Status
	}
	if params.Limit > 0 {
		query["limit"] = strconv.Itoa(params.Limit)
	}

	err := s.apiClient.Do(ctx, Params{
		Method:      http.MethodGet,
		Path:        "backups",
		QueryParams: query,
		Response:    &response,
	})
	return response.Data, err
}

func (s service) DeleteBackup(ctx context.Context, backupID uuid.UUID) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("backups/%s", backupID),
	})
}

func (s service) DownloadBackup(ctx context.Context, backupID uuid.UUID) (io.ReadCloser, error) {
	return s.apiClient.Download(ctx, Params{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("backups/%s/download", backupID),
	})
}

func (s service) CreateSchedule(ctx context.Context, params ScheduleParams) (Schedule, error) {
	var response struct {
		Data Schedule `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "schedules",
		Body:     params,
		Response: &response,
	})
	return response.Data, err
}

func (s service) ListSchedules(ctx context.Context) ([]Schedule, error) {
	var response struct {
		Data []Schedule `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "schedules",
		Response: &response,
	})
	return response.Data, err
}

func (s service) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("schedules/%s", scheduleID),
	})
}

func (s service) ListMaterialized(ctx context.Context) ([]MaterializedEntry, error) {
	var response struct {
		Data []MaterializedEntry `json:"data"`
	}

	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "schedules/materialized",
		Response: &response,
	})
	return response.Data, err
}

func (s service) TestStorage(ctx context.Context) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodPost,
		Path:   "storage/test",
	})
}
