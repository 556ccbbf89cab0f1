package manager

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	errorpkg "github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"nexdb/internal/connection"
	"nexdb/internal/database"
	"nexdb/internal/firewall"
	"nexdb/internal/scheduler"
	"nexdb/internal/service"
	"nexdb/internal/storage"
	"nexdb/internal/types"
	"nexdb/logger"
	"sync"
	"time"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

var (
	ErrAccessDenied = errors.New("access denied")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

type (
	Manager interface {
		ValidateToken(ctx context.Context, token string) error

		CreateProject(ctx context.Context, params types.CreateProjectParams) (*types.Project, error)
		ListProjects(ctx context.Context) ([]*types.Project, error)
		GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error)
		UpdateProject(ctx context.Context, projectID uuid.UUID, params types.UpdateProjectParams) (*types.Project, error)
		DeleteProject(ctx context.Context, projectID uuid.UUID) error

		RegisterServer(ctx context.Context, params types.RegisterServerParams) (*types.DatabaseServer, error)
		GetServer(ctx context.Context, serverID uuid.UUID) (*types.DatabaseServer, error)
		ListServers(ctx context.Context) ([]*types.DatabaseServer, error)
		DeleteServer(ctx context.Context, serverID uuid.UUID) error
		TestServer(ctx context.Context, serverID uuid.UUID) (*types.ConnectionTestResult, error)
		RotateSecret(ctx context.Context, serverID uuid.UUID, secret string) error
		ManageNetworkAccess(ctx context.Context, serverID uuid.UUID, ip string, op Op) error
		// RestoreNetworkAccess re-applies the stored whitelist after the process starts
		RestoreNetworkAccess(ctx context.Context) error

		AddDatabase(ctx context.Context, serverID uuid.UUID, params types.AddDatabaseParams) (*types.Database, error)
		// ListDatabases lists every database, or only those of serverID when it is set
		ListDatabases(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error)
		DeleteDatabase(ctx context.Context, databaseID uuid.UUID) error
		// ListRemoteDatabases lists the user databases found on the server itself
		ListRemoteDatabases(ctx context.Context, serverID uuid.UUID) ([]types.RemoteDatabase, error)
		// CreateDatabase creates the database on the server and registers it
		CreateDatabase(ctx context.Context, serverID uuid.UUID, params types.CreateDatabaseParams) (*types.Database, error)
		CreateDatabaseUser(ctx context.Context, serverID uuid.UUID, params types.CreateUserParams) (*types.DatabaseUser, error)

		CreateBackup(ctx context.Context, params types.CreateBackupParams) (types.BackupResult, error)
		RunAllDue(ctx context.Context) ([]types.BackupResult, error)
		ListBackups(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error)
		GetBackup(ctx context.Context, backupID uuid.UUID) (*types.BackupRecord, error)
		DeleteBackup(ctx context.Context, backupID uuid.UUID) error
		DownloadBackup(ctx context.Context, backupID uuid.UUID) (*types.File, error)

		CreateSchedule(ctx context.Context, params types.ScheduleParams) (*types.BackupSchedule, error)
		UpdateSchedule(ctx context.Context, scheduleID uuid.UUID, params types.ScheduleParams) (*types.BackupSchedule, error)
		DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error
		ListSchedules(ctx context.Context) ([]*types.BackupSchedule, error)
		ListMaterialized(ctx context.Context) ([]scheduler.Entry, error)
		ReconcileSchedules(ctx context.Context) (scheduler.Report, error)

		TestStorage(ctx context.Context) error
	}

	// Services bundles what the manager delegates to
	Services struct {
		Projects    service.ProjectService
		Credentials service.CredentialStore
		Databases   service.DatabaseService
		Backups     service.BackupService
		Schedules   service.ScheduleService
	}
)

type manager struct {
	accessKey       string
	services        Services
	tester          connection.Tester
	provisioner     connection.Provisioner
	uploader        storage.Uploader
	firewallManager firewall.Manager
	naRepository    database.NetworkAccessRepository

	mu      sync.Mutex
	blocked map[int]bool
}

func New(
	accessKey string,
	services Services,
	tester connection.Tester,
	provisioner connection.Provisioner,
	uploader storage.Uploader,
	fm firewall.Manager,
	naRepository database.NetworkAccessRepository) Manager {
	return &manager{
		accessKey:       accessKey,
		services:        services,
		tester:          tester,
		provisioner:     provisioner,
		uploader:        uploader,
		firewallManager: fm,
		naRepository:    naRepository,
		blocked:         make(map[int]bool),
	}
}

// ValidateToken accepts anything when no access key is configured
func (m *manager) ValidateToken(_ context.Context, token string) error {
	if m.accessKey == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(m.accessKey), []byte(token)) != 1 {
		return ErrAccessDenied
	}
	return nil
}

func (m *manager) CreateProject(ctx context.Context, params types.CreateProjectParams) (*types.Project, error) {
	return m.services.Projects.Create(ctx, params)
}

func (m *manager) ListProjects(ctx context.Context) ([]*types.Project, error) {
	return m.services.Projects.List(ctx)
}

func (m *manager) GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error) {
	return m.services.Projects.Get(ctx, projectID)
}

func (m *manager) UpdateProject(ctx context.Context, projectID uuid.UUID, params types.UpdateProjectParams) (*types.Project, error) {
	return m.services.Projects.Update(ctx, projectID, params)
}

func (m *manager) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	return m.services.Projects.Delete(ctx, projectID)
}

func (m *manager) RegisterServer(ctx context.Context, params types.RegisterServerParams) (*types.DatabaseServer, error) {
	if params.ProjectID != uuid.Nil {
		if _, err := m.services.Projects.Get(ctx, params.ProjectID); err != nil {
			return nil, err
		}
	}

	if !params.SkipConnectionTest {
		creds, err := service.CredentialsFromParams(params)
		if err != nil {
			return nil, err
		}

		result, err := m.tester.Test(ctx, creds)
		if err != nil {
			return nil, err
		}
		logger.Info("connection test passed",
			zap.String("server", creds.String()),
			zap.String("version", result.Version))
	}

	return m.services.Credentials.RegisterServer(ctx, params)
}

func (m *manager) GetServer(ctx context.Context, serverID uuid.UUID) (*types.DatabaseServer, error) {
	return m.services.Credentials.FindServer(ctx, serverID)
}

func (m *manager) ListServers(ctx context.Context) ([]*types.DatabaseServer, error) {
	return m.services.Credentials.ListServers(ctx)
}

// DeleteServer removes the server together with its databases, their schedules and any network access it granted
func (m *manager) DeleteServer(ctx context.Context, serverID uuid.UUID) error {
	server, err := m.services.Credentials.FindServer(ctx, serverID)
	if err != nil {
		return err
	}

	databases, err := m.services.Databases.ListByServer(ctx, serverID)
	if err != nil {
		return err
	}

	for _, db := range databases {
		if err := m.DeleteDatabase(ctx, db.ID); err != nil {
			return errorpkg.Wrapf(err, "failed to delete database %s", db.Name)
		}
	}

	nas, err := m.naRepository.FindByServerID(ctx, serverID)
	if err != nil {
		return err
	}

	for _, na := range nas {
		if err := m.revoke(ctx, na); err != nil {
			return err
		}
	}

	if err := m.services.Credentials.DeleteServer(ctx, serverID); err != nil {
		return err
	}

	logger.Info("database server deleted",
		zap.String("id", serverID.String()),
		zap.String("name", server.Name),
		zap.Int("databases", len(databases)))
	return nil
}

func (m *manager) TestServer(ctx context.Context, serverID uuid.UUID) (*types.ConnectionTestResult, error) {
	creds, err := m.services.Credentials.Decrypt(ctx, serverID)
	if err != nil {
		return nil, err
	}

	result, err := m.tester.Test(ctx, creds)
	if err != nil {
		return nil, err
	}

	return &types.ConnectionTestResult{
		Engine:    result.Engine,
		Version:   result.Version,
		LatencyMS: result.Latency.Milliseconds(),
	}, nil
}

func (m *manager) RotateSecret(ctx context.Context, serverID uuid.UUID, secret string) error {
	if secret == "" {
		return errors.New("secret is required")
	}
	return m.services.Credentials.UpdateSecret(ctx, serverID, secret)
}

func (m *manager) ManageNetworkAccess(ctx context.Context, serverID uuid.UUID, ip string, op Op) error {
	server, err := m.services.Credentials.FindServer(ctx, serverID)
	if err != nil {
		return err
	}

	existing, err := m.naRepository.Find(ctx, serverID, ip)
	if err != nil && !types.IsNotFound(err) {
		return err
	}
	found := err == nil

	switch op {
	case OpAdd:
		if found {
			return fmt.Errorf("IP %s is already whitelisted for server %s", ip, server.Name)
		}
		return m.grant(ctx, server, ip)
	case OpRemove:
		if !found {
			return fmt.Errorf("IP %s is not whitelisted for server %s", ip, server.Name)
		}
		return m.revoke(ctx, existing)
	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

func (m *manager) RestoreNetworkAccess(ctx context.Context) error {
	servers, err := m.services.Credentials.ListServers(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, server := range servers {
		nas, err := m.naRepository.FindByServerID(ctx, server.ID)
		if err != nil {
			return err
		}

		for _, na := range nas {
			if err := m.blockPort(na.Port); err != nil {
				return err
			}
			if err := m.firewallManager.WhitelistIP(na.IP, uint(na.Port)); err != nil {
				return errorpkg.Wrapf(err, "failed to restore access of %s", na.IP)
			}
			restored++
		}
	}

	if restored > 0 {
		logger.Info("network access restored", zap.Int("rules", restored))
	}
	return nil
}

// blockPort drops traffic to port from everyone not whitelisted. It runs once per port.
func (m *manager) blockPort(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocked[port] {
		return nil
	}

	if err := m.firewallManager.BlockPortAccess(uint(port)); err != nil {
		return errorpkg.Wrapf(err, "failed to block port %d", port)
	}
	m.blocked[port] = true
	return nil
}

func (m *manager) grant(ctx context.Context, server *types.DatabaseServer, ip string) error {
	port := server.EffectivePort()
	if err := m.blockPort(port); err != nil {
		return err
	}
	if err := m.firewallManager.WhitelistIP(ip, uint(port)); err != nil {
		return errorpkg.Wrap(err, "failed to whitelist IP")
	}

	record := &types.NetworkAccess{
		ID:        uuid.New(),
		ServerID:  server.ID,
		IP:        ip,
		Port:      port,
		CreatedAt: time.Now(),
	}
	if err := m.naRepository.Save(ctx, record); err != nil {
		return err
	}

	logger.Info("network access granted",
		zap.String("server", server.Name),
		zap.String("ip", ip),
		zap.Int("port", port))
	return nil
}

func (m *manager) revoke(ctx context.Context, na *types.NetworkAccess) error {
	if err := m.firewallManager.BlacklistIP(na.IP, uint(na.Port)); err != nil {
		return errorpkg.Wrap(err, "failed to remove IP from whitelist")
	}
	return m.naRepository.Remove(ctx, na.ID)
}

func (m *manager) AddDatabase(ctx context.Context, serverID uuid.UUID, params types.AddDatabaseParams) (*types.Database, error) {
	return m.services.Databases.Add(ctx, serverID, params)
}

func (m *manager) ListRemoteDatabases(ctx context.Context, serverID uuid.UUID) ([]types.RemoteDatabase, error) {
	creds, err := m.services.Credentials.Decrypt(ctx, serverID)
	if err != nil {
		return nil, err
	}

	names, err := m.provisioner.ListDatabases(ctx, creds)
	if err != nil {
		return nil, err
	}

	registered, err := m.services.Databases.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	byName := lo.KeyBy(registered, func(db *types.Database) string { return db.Name })

	return lo.Map(names, func(name string, _ int) types.RemoteDatabase {
		remote := types.RemoteDatabase{Name: name}
		if db, ok := byName[name]; ok {
			remote.Registered = true
			remote.DatabaseID = db.ID
		}
		return remote
	}), nil
}

func (m *manager) CreateDatabase(ctx context.Context, serverID uuid.UUID, params types.CreateDatabaseParams) (*types.Database, error) {
	if err := connection.ValidateIdentifier("database", params.Name); err != nil {
		return nil, err
	}

	creds, err := m.services.Credentials.Decrypt(ctx, serverID)
	if err != nil {
		return nil, err
	}

	if err := m.provisioner.CreateDatabase(ctx, creds, params.Name); err != nil {
		return nil, err
	}

	return m.services.Databases.Add(ctx, serverID, types.AddDatabaseParams{
		Name:        params.Name,
		Description: params.Description,
	})
}

// CreateDatabaseUser creates a login on the server. The password is not stored.
func (m *manager) CreateDatabaseUser(ctx context.Context, serverID uuid.UUID, params types.CreateUserParams) (*types.DatabaseUser, error) {
	if err := validate.Struct(params); err != nil {
		return nil, errorpkg.Wrap(err, "invalid parameters")
	}

	creds, err := m.services.Credentials.Decrypt(ctx, serverID)
	if err != nil {
		return nil, err
	}

	err = m.provisioner.CreateUser(ctx, creds, connection.User{
		Username: params.Username,
		Password: params.Password,
		Database: params.Database,
	})
	if err != nil {
		return nil, err
	}

	return &types.DatabaseUser{
		ServerID: serverID,
		Username: params.Username,
		Database: params.Database,
	}, nil
}

func (m *manager) ListDatabases(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error) {
	if serverID == uuid.Nil {
		return m.services.Databases.List(ctx)
	}

	if _, err := m.services.Credentials.FindServer(ctx, serverID); err != nil {
		return nil, err
	}
	return m.services.Databases.ListByServer(ctx, serverID)
}

// DeleteDatabase removes the schedules of the database first so no trigger outlives it.
// Backup records and their files are kept.
func (m *manager) DeleteDatabase(ctx context.Context, databaseID uuid.UUID) error {
	if _, err := m.services.Databases.Get(ctx, databaseID); err != nil {
		return err
	}

	if err := m.services.Schedules.DeleteForDatabase(ctx, databaseID); err != nil {
		return err
	}
	return m.services.Databases.Delete(ctx, databaseID)
}

func (m *manager) CreateBackup(ctx context.Context, params types.CreateBackupParams) (types.BackupResult, error) {
	return m.services.Backups.CreateBackup(ctx, params)
}

func (m *manager) RunAllDue(ctx context.Context) ([]types.BackupResult, error) {
	return m.services.Backups.RunAllDue(ctx)
}

func (m *manager) ListBackups(ctx context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	return m.services.Backups.ListBackups(ctx, filter)
}

func (m *manager) GetBackup(ctx context.Context, backupID uuid.UUID) (*types.BackupRecord, error) {
	return m.services.Backups.GetBackup(ctx, backupID)
}

func (m *manager) DeleteBackup(ctx context.Context, backupID uuid.UUID) error {
	return m.services.Backups.DeleteBackup(ctx, backupID)
}

func (m *manager) DownloadBackup(ctx context.Context, backupID uuid.UUID) (*types.File, error) {
	return m.services.Backups.Download(ctx, backupID)
}

func (m *manager) CreateSchedule(ctx context.Context, params types.ScheduleParams) (*types.BackupSchedule, error) {
	return m.services.Schedules.Create(ctx, params)
}

func (m *manager) UpdateSchedule(ctx context.Context, scheduleID uuid.UUID, params types.ScheduleParams) (*types.BackupSchedule, error) {
	return m.services.Schedules.Update(ctx, scheduleID, params)
}

func (m *manager) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	return m.services.Schedules.Delete(ctx, scheduleID)
}

func (m *manager) ListSchedules(ctx context.Context) ([]*types.BackupSchedule, error) {
	return m.services.Schedules.List(ctx)
}

func (m *manager) ListMaterialized(ctx context.Context) ([]scheduler.Entry, error) {
	return m.services.Schedules.ListMaterialized(ctx)
}

func (m *manager) ReconcileSchedules(ctx context.Context) (scheduler.Report, error) {
	return m.services.Schedules.Reconcile(ctx)
}

func (m *manager) TestStorage(ctx context.Context) error {
	return m.uploader.Ping(ctx)
}
