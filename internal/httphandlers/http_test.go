package httphandlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	errorpkg "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"nexdb/internal/eventbus"
	"nexdb/internal/manager"
	"nexdb/internal/metrics"
	"nexdb/internal/types"
	"strings"
	"testing"
	"time"
)

// stubManager implements only what a test needs, anything else panics and is recovered as a 500
type stubManager struct {
	manager.Manager
	accessKey string
	filter    types.BackupFilter
	backup    func(params types.CreateBackupParams) (types.BackupResult, error)
	storage   error
	created   types.CreateDatabaseParams
	createErr error
	user      types.CreateUserParams
	projects  map[uuid.UUID]*types.Project
}

func (s *stubManager) ValidateToken(_ context.Context, token string) error {
	if s.accessKey != "" && token != s.accessKey {
		return manager.ErrAccessDenied
	}
	return nil
}

func (s *stubManager) GetServer(_ context.Context, id uuid.UUID) (*types.DatabaseServer, error) {
	return nil, types.NewNotFoundError("server", id)
}

func (s *stubManager) ListBackups(_ context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	s.filter = filter
	return []*types.BackupRecord{{ID: uuid.New(), DatabaseID: filter.DatabaseID, Status: types.BackupStatusCompleted}}, nil
}

func (s *stubManager) CreateBackup(_ context.Context, params types.CreateBackupParams) (types.BackupResult, error) {
	return s.backup(params)
}

func (s *stubManager) DownloadBackup(_ context.Context, id uuid.UUID) (*types.File, error) {
	return &types.File{
		Content: io.NopCloser(strings.NewReader("CREATE TABLE t (id int);\n")),
		Stat:    types.FileStat{Name: "shop.sql", Size: 25, ContentType: "application/sql"},
	}, nil
}

func (s *stubManager) TestStorage(context.Context) error {
	return s.storage
}

func (s *stubManager) GetProject(_ context.Context, id uuid.UUID) (*types.Project, error) {
	if project, found := s.projects[id]; found {
		return project, nil
	}
	return nil, types.NewNotFoundError("project", id)
}

func (s *stubManager) UpdateProject(ctx context.Context, id uuid.UUID, params types.UpdateProjectParams) (*types.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		project.Name = *params.Name
	}
	return project, nil
}

func (s *stubManager) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	delete(s.projects, id)
	return nil
}

func (s *stubManager) CreateDatabase(_ context.Context, serverID uuid.UUID, params types.CreateDatabaseParams) (*types.Database, error) {
	s.created = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &types.Database{ID: uuid.New(), ServerID: serverID, Name: params.Name}, nil
}

func (s *stubManager) ListRemoteDatabases(_ context.Context, _ uuid.UUID) ([]types.RemoteDatabase, error) {
	return []types.RemoteDatabase{{Name: "blog"}, {Name: "shop", Registered: true, DatabaseID: uuid.New()}}, nil
}

func (s *stubManager) CreateDatabaseUser(_ context.Context, serverID uuid.UUID, params types.CreateUserParams) (*types.DatabaseUser, error) {
	s.user = params
	return &types.DatabaseUser{ServerID: serverID, Username: params.Username, Database: params.Database}, nil
}

type envelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(t *testing.T, mn manager.Manager, eb eventbus.Bus) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	if eb == nil {
		eb = eventbus.New()
	}
	return Routes(NewApiHandler(mn, eb), RouteOptions{
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		CORSOrigins: []string{"https://console.example.com"},
	}), reg
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newRouter(t, &stubManager{accessKey: "secret"}, nil)
	rec, env := do(t, h, http.MethodGet, "/v1/h", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Error)
}

func TestAccessToken(t *testing.T) {
	h, _ := newRouter(t, &stubManager{accessKey: "secret"}, nil)

	rec, env := do(t, h, http.MethodGet, "/v1/backups", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, env.Error)

	rec, _ = do(t, h, http.MethodGet, "/v1/backups", "", authorizationHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/v1/backups", "", authorizationHeader, "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Error)
}

func TestNotFoundAndBadID(t *testing.T) {
	h, _ := newRouter(t, &stubManager{}, nil)

	rec, env := do(t, h, http.MethodGet, "/v1/servers/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, env.Message, "not found")

	rec, _ = do(t, h, http.MethodGet, "/v1/servers/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBackupsFilter(t *testing.T) {
	mn := &stubManager{}
	h, _ := newRouter(t, mn, nil)
	databaseID := uuid.New()

	rec, env := do(t, h, http.MethodGet, fmt.Sprintf("/v1/backups?database_id=%s&status=failed&limit=5", databaseID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.BackupFilter{DatabaseID: databaseID, Status: types.BackupStatusFailed, Limit: 5}, mn.filter)

	var records []types.BackupRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 1)

	for _, query := range []string{"status=done", "limit=-1", "database_id=x"} {
		rec, _ = do(t, h, http.MethodGet, "/v1/backups?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestCreateBackup(t *testing.T) {
	databaseID := uuid.New()
	mn := &stubManager{}
	h, _ := newRouter(t, mn, nil)

	mn.backup = func(params types.CreateBackupParams) (types.BackupResult, error) {
		assert.Equal(t, databaseID, params.DatabaseID)
		assert.True(t, params.Upload)
		return types.BackupResult{
			DatabaseID: databaseID,
			Record:     &types.BackupRecord{Status: types.BackupStatusCompleted, Location: types.BackupLocationRemote},
		}, nil
	}
	rec, env := do(t, h, http.MethodPost, "/v1/databases/"+databaseID.String()+"/backups", `{"upload": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Error)

	dumpErr := &types.DumpFailedError{Engine: types.EngineMysql, Database: "shop", Stderr: "Access denied"}
	mn.backup = func(params types.CreateBackupParams) (types.BackupResult, error) {
		return types.BackupResult{
			DatabaseID: databaseID,
			Record:     &types.BackupRecord{Status: types.BackupStatusFailed},
			Error:      dumpErr.Error(),
			Err:        dumpErr,
		}, dumpErr
	}
	rec, env = do(t, h, http.MethodPost, "/v1/databases/"+databaseID.String()+"/backups", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, env.Error)

	var result types.BackupResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, types.BackupStatusFailed, result.Record.Status)
	assert.Contains(t, result.Error, "Access denied")

	mn.backup = func(params types.CreateBackupParams) (types.BackupResult, error) {
		return types.BackupResult{}, types.NewNotFoundError("database", params.DatabaseID)
	}
	rec, _ = do(t, h, http.MethodPost, "/v1/databases/"+databaseID.String()+"/backups", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadBackup(t *testing.T) {
	h, _ := newRouter(t, &stubManager{}, nil)

	rec, _ := do(t, h, http.MethodGet, "/v1/backups/"+uuid.NewString()+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/sql", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="shop.sql"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "CREATE TABLE t (id int);\n", rec.Body.String())
}

func TestProjectRoutes(t *testing.T) {
	id := uuid.New()
	mn := &stubManager{projects: map[uuid.UUID]*types.Project{id: {ID: id, Name: "shop"}}}
	h, _ := newRouter(t, mn, nil)

	rec, env := do(t, h, http.MethodGet, "/v1/projects/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var project types.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))
	assert.Equal(t, "shop", project.Name)

	rec, env = do(t, h, http.MethodPut, "/v1/projects/"+id.String(), `{"name": "shop-eu"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &project))
	assert.Equal(t, "shop-eu", project.Name)

	rec, _ = do(t, h, http.MethodPut, "/v1/projects/"+id.String(), `{"name": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/v1/projects/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/v1/projects/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/v1/projects/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoteDatabaseRoutes(t *testing.T) {
	serverID := uuid.New()
	mn := &stubManager{}
	h, _ := newRouter(t, mn, nil)

	rec, env := do(t, h, http.MethodGet, "/v1/servers/"+serverID.String()+"/remote-databases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var remote []types.RemoteDatabase
	require.NoError(t, json.Unmarshal(env.Data, &remote))
	require.Len(t, remote, 2)
	assert.True(t, remote[1].Registered)

	rec, env = do(t, h, http.MethodPost, "/v1/servers/"+serverID.String()+"/remote-databases", `{"name": "shop"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shop", mn.created.Name)
	var db types.Database
	require.NoError(t, json.Unmarshal(env.Data, &db))
	assert.Equal(t, serverID, db.ServerID)

	mn.createErr = &types.ConflictError{Reason: "database shop already exists"}
	rec, env = do(t, h, http.MethodPost, "/v1/servers/"+serverID.String()+"/remote-databases", `{"name": "shop"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "database shop already exists", env.Message)

	mn.createErr = &types.InvalidRequestError{Reason: "invalid database name"}
	rec, _ = do(t, h, http.MethodPost, "/v1/servers/"+serverID.String()+"/remote-databases", `{"name": "shop-db"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDatabaseUserRoute(t *testing.T) {
	serverID := uuid.New()
	mn := &stubManager{}
	h, _ := newRouter(t, mn, nil)

	rec, env := do(t, h, http.MethodPost, "/v1/servers/"+serverID.String()+"/users",
		`{"username": "app", "password": "s3cret-pass", "database": "shop"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s3cret-pass", mn.user.Password)
	assert.NotContains(t, string(env.Data), "s3cret-pass")

	var user types.DatabaseUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "app", user.Username)
	assert.Equal(t, "shop", user.Database)
}

func TestStorageTest(t *testing.T) {
	mn := &stubManager{storage: types.ErrRemoteDisabled}
	h, _ := newRouter(t, mn, nil)

	rec, _ := do(t, h, http.MethodPost, "/v1/storage/test", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mn.storage = &types.UploadFailedError{Key: "ping", Cause: errors.New("403")}
	rec, _ = do(t, h, http.MethodPost, "/v1/storage/test", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	mn.storage = nil
	rec, _ = do(t, h, http.MethodPost, "/v1/storage/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnimplementedIsRecovered(t *testing.T) {
	h, _ := newRouter(t, &stubManager{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newRouter(t, &stubManager{}, nil)
	do(t, h, http.MethodGet, "/v1/h", "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nexdb_http_requests_total{method="GET",route="/v1/h",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	h, _ := newRouter(t, &stubManager{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/backups", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamEvents(t *testing.T) {
	eb := eventbus.New()
	h, _ := newRouter(t, &stubManager{}, eb)
	srv := httptest.NewServer(h)
	defer srv.Close()

	databaseID := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/databases/"+databaseID.String()+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() eventbus.Event {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var ev eventbus.Event
		require.NoError(t, json.Unmarshal(line, &ev))
		return ev
	}

	// the subscription line is written after registration, so broadcasting now cannot be lost
	first := readEvent()
	assert.Equal(t, eventbus.Info, first.Type)

	eb.BroadcastWithData(databaseID.String(), eventbus.Success, "backup completed", map[string]string{"status": "completed"})
	eb.Broadcast(uuid.NewString(), eventbus.Error, "someone else")
	eb.Broadcast(databaseID.String(), eventbus.Complete, "done")

	ev := readEvent()
	assert.Equal(t, eventbus.Success, ev.Type)
	assert.JSONEq(t, `{"status":"completed"}`, string(ev.Data))
	assert.Equal(t, eventbus.Complete, readEvent().Type)
}

func TestStreamEventsReplay(t *testing.T) {
	eb := eventbus.New()
	h, _ := newRouter(t, &stubManager{}, eb)
	srv := httptest.NewServer(h)
	defer srv.Close()

	databaseID := uuid.New()
	eb.Broadcast(databaseID.String(), eventbus.Info, "backup started")
	eb.Broadcast(databaseID.String(), eventbus.Error, "backup failed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/v1/databases/"+databaseID.String()+"/events?replay=true", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	messages := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var ev eventbus.Event
		require.NoError(t, json.Unmarshal(line, &ev))
		messages = append(messages, ev.Message)
	}
	assert.Equal(t, []string{"subscribed to " + databaseID.String(), "backup started", "backup failed"}, messages)
}

func TestStatusOf(t *testing.T) {
	validationErr := validator.New().Var("", "required")
	require.Error(t, validationErr)

	tests := []struct {
		err  error
		want int
	}{
		{types.NewNotFoundError("backup", uuid.New()), http.StatusNotFound},
		{errorpkg.Wrap(types.NewScheduleValidationError("hour", "bad"), "create"), http.StatusBadRequest},
		{&types.ConnectionFailedError{Host: "db:5432", Cause: errors.New("refused")}, http.StatusBadRequest},
		{&types.InvalidTransitionError{From: types.BackupStatusCompleted, To: types.BackupStatusFailed}, http.StatusBadRequest},
		{errorpkg.Wrap(validationErr, "invalid parameters"), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", types.ErrUnsupportedEngine, "mongodb"), http.StatusBadRequest},
		{&types.InvalidRequestError{Reason: "schedule does not belong to database"}, http.StatusBadRequest},
		{&types.NotReadyError{ID: "b1", Status: types.BackupStatusFailed}, http.StatusConflict},
		{errorpkg.Wrap(&types.ConflictError{Reason: "database shop already exists"}, "create"), http.StatusConflict},
		{manager.ErrAccessDenied, http.StatusUnauthorized},
		{&types.DumpFailedError{Engine: types.EngineMysql, Database: "shop"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
