package httphandlers

import (
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"io"
	"net/http"
	"nexdb/internal/eventbus"
	"nexdb/internal/manager"
	"nexdb/internal/types"
	"nexdb/logger"
	"strconv"
)

type (
	ApiHandler struct {
		mn manager.Manager
		eb eventbus.Bus
	}

	secretBody struct {
		Secret string `json:"secret"`
	}

	networkAccessBody struct {
		IP string `json:"ip"`
	}
)

func NewApiHandler(mn manager.Manager, eb eventbus.Bus) *ApiHandler {
	return &ApiHandler{mn: mn, eb: eb}
}

func (handler *ApiHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var params types.CreateProjectParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	project, err := handler.mn.CreateProject(r.Context(), params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "project created", project)
}

func (handler *ApiHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := handler.mn.ListProjects(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", projects)
}

func (handler *ApiHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	project, err := handler.mn.GetProject(r.Context(), projectID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", project)
}

func (handler *ApiHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.UpdateProjectParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	project, err := handler.mn.UpdateProject(r.Context(), projectID, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "project updated", project)
}

func (handler *ApiHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.mn.DeleteProject(r.Context(), projectID); err != nil {
		fail(w, err)
		return
	}

	ok(w, "project deleted", nil)
}

func (handler *ApiHandler) RegisterServer(w http.ResponseWriter, r *http.Request) {
	var params types.RegisterServerParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	server, err := handler.mn.RegisterServer(r.Context(), params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "server registered", server)
}

func (handler *ApiHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := handler.mn.ListServers(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", servers)
}

func (handler *ApiHandler) GetServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	server, err := handler.mn.GetServer(r.Context(), serverID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", server)
}

func (handler *ApiHandler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.mn.DeleteServer(r.Context(), serverID); err != nil {
		fail(w, err)
		return
	}

	ok(w, "server deleted", nil)
}

func (handler *ApiHandler) TestServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	result, err := handler.mn.TestServer(r.Context(), serverID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "connection successful", result)
}

func (handler *ApiHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var body secretBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}

	if body.Secret == "" {
		badRequest(w, errors.New("secret is required"))
		return
	}

	if err := handler.mn.RotateSecret(r.Context(), serverID, body.Secret); err != nil {
		fail(w, err)
		return
	}

	ok(w, "secret updated", nil)
}

func (handler *ApiHandler) WhitelistIP(w http.ResponseWriter, r *http.Request) {
	handler.manageNetworkAccess(w, r, manager.OpAdd, "IP whitelisted")
}

func (handler *ApiHandler) BlacklistIP(w http.ResponseWriter, r *http.Request) {
	handler.manageNetworkAccess(w, r, manager.OpRemove, "IP removed from whitelist")
}

func (handler *ApiHandler) manageNetworkAccess(w http.ResponseWriter, r *http.Request, op manager.Op, message string) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var body networkAccessBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}

	if body.IP == "" {
		badRequest(w, errors.New("ip is required"))
		return
	}

	if err := handler.mn.ManageNetworkAccess(r.Context(), serverID, body.IP, op); err != nil {
		if types.IsNotFound(err) {
			fail(w, err)
			return
		}
		badRequest(w, err)
		return
	}

	ok(w, message, nil)
}

func (handler *ApiHandler) AddDatabase(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.AddDatabaseParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	db, err := handler.mn.AddDatabase(r.Context(), serverID, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "database added", db)
}

func (handler *ApiHandler) ListRemoteDatabases(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	databases, err := handler.mn.ListRemoteDatabases(r.Context(), serverID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", databases)
}

func (handler *ApiHandler) CreateRemoteDatabase(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.CreateDatabaseParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	db, err := handler.mn.CreateDatabase(r.Context(), serverID, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "database created", db)
}

func (handler *ApiHandler) CreateDatabaseUser(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.CreateUserParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	user, err := handler.mn.CreateDatabaseUser(r.Context(), serverID, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "user created", user)
}

func (handler *ApiHandler) ListServerDatabases(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	databases, err := handler.mn.ListDatabases(r.Context(), serverID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", databases)
}

func (handler *ApiHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	databases, err := handler.mn.ListDatabases(r.Context(), uuid.Nil)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", databases)
}

func (handler *ApiHandler) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	databaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.mn.DeleteDatabase(r.Context(), databaseID); err != nil {
		fail(w, err)
		return
	}

	ok(w, "database deleted", nil)
}

func (handler *ApiHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	databaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.CreateBackupParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
		badRequest(w, err)
		return
	}
	params.DatabaseID = databaseID
	if params.CreatedBy == "" {
		params.CreatedBy = "api"
	}

	result, err := handler.mn.CreateBackup(r.Context(), params)
	if err != nil {
		if result.Record == nil {
			fail(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err, result)
		return
	}

	ok(w, "backup completed", result)
}

func (handler *ApiHandler) RunAllDue(w http.ResponseWriter, r *http.Request) {
	results, err := handler.mn.RunAllDue(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	failed := 0
	for _, res := range results {
		if !res.Succeeded() {
			failed++
		}
	}

	ok(w, fmt.Sprintf("%d backups run, %d failed", len(results), failed), results)
}

func (handler *ApiHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := types.BackupFilter{}

	if id := query.Get("database_id"); id != "" {
		databaseID, err := uuid.Parse(id)
		if err != nil {
			badRequest(w, errors.Wrap(err, "invalid database_id"))
			return
		}
		filter.DatabaseID = databaseID
	}

	if status := query.Get("status"); status != "" {
		filter.Status = types.BackupStatus(status)
		if !filter.Status.Valid() {
			badRequest(w, fmt.Errorf("unknown status: %s", status))
			return
		}
	}

	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			badRequest(w, fmt.Errorf("invalid limit: %s", limit))
			return
		}
		filter.Limit = n
	}

	records, err := handler.mn.ListBackups(r.Context(), filter)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", records)
}

func (handler *ApiHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	backupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	record, err := handler.mn.GetBackup(r.Context(), backupID)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", record)
}

func (handler *ApiHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	backupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.mn.DeleteBackup(r.Context(), backupID); err != nil {
		fail(w, err)
		return
	}

	ok(w, "backup deleted", nil)
}

func (handler *ApiHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	backupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	result, err := handler.mn.DownloadBackup(r.Context(), backupID)
	if err != nil {
		fail(w, err)
		return
	}
	defer result.Content.Close()

	if result.Stat.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.Stat.Size, 10))
	}
	w.Header().Set("Content-Type", result.GetContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Stat.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Content); err != nil {
		logger.Warn("backup download interrupted",
			zap.String("backup", backupID.String()),
			zap.Error(err))
	}
}

// StreamEvents follows the backup events of one database as newline delimited JSON until the client
// leaves. With ?replay=true the recently published events are written first.
func (handler *ApiHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	databaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	identifier := databaseID.String()
	ch := handler.eb.Register(identifier)
	defer handler.eb.Unregister(identifier, ch)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = writeLine(w, eventbus.Event{Type: eventbus.Info, Message: "subscribed to " + identifier})
	if r.URL.Query().Get("replay") == "true" {
		for _, ev := range handler.eb.Recent(identifier) {
			if err := writeLine(w, ev); err != nil {
				return
			}
		}
	}

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeLine(w, ev); err != nil {
				return
			}
		case <-r.Context().Done():
			logger.Debug("event stream client disconnected", zap.String("database", identifier))
			return
		}
	}
}

func (handler *ApiHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var params types.ScheduleParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	schedule, err := handler.mn.CreateSchedule(r.Context(), params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "schedule created", schedule)
}

func (handler *ApiHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.ScheduleParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, err)
		return
	}

	schedule, err := handler.mn.UpdateSchedule(r.Context(), scheduleID, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "schedule updated", schedule)
}

func (handler *ApiHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.mn.DeleteSchedule(r.Context(), scheduleID); err != nil {
		fail(w, err)
		return
	}

	ok(w, "schedule deleted", nil)
}

func (handler *ApiHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := handler.mn.ListSchedules(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", schedules)
}

func (handler *ApiHandler) ListMaterialized(w http.ResponseWriter, r *http.Request) {
	entries, err := handler.mn.ListMaterialized(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", entries)
}

func (handler *ApiHandler) ReconcileSchedules(w http.ResponseWriter, r *http.Request) {
	report, err := handler.mn.ReconcileSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, report)
		return
	}

	ok(w, "schedules reconciled", report)
}

func (handler *ApiHandler) TestStorage(w http.ResponseWriter, r *http.Request) {
	if err := handler.mn.TestStorage(r.Context()); err != nil {
		if errors.Is(err, types.ErrRemoteDisabled) {
			badRequest(w, err)
			return
		}
		fail(w, err)
		return
	}

	ok(w, "remote storage reachable", nil)
}

func (handler *ApiHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := handler.mn.ValidateToken(r.Context(), r.Header.Get(authorizationHeader)); err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
