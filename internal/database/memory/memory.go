// Package memory holds map backed repositories used by tests and by the
// scheduler when no embedded database is wanted.
package memory

import (
	"context"
	"github.com/google/uuid"
	"nexdb/internal/database"
	"nexdb/internal/types"
	"sort"
	"sync"
	"time"
)

func New() database.Repositories {
	servers := &ServerRepository{items: map[uuid.UUID]types.DatabaseServer{}}
	databases := &DatabaseRepository{items: map[uuid.UUID]types.Database{}, servers: servers}
	return database.Repositories{
		Projects:      &ProjectRepository{items: map[uuid.UUID]types.Project{}},
		Servers:       servers,
		Databases:     databases,
		Backups:       &BackupRepository{items: map[uuid.UUID]types.BackupRecord{}},
		Schedules:     &ScheduleRepository{items: map[uuid.UUID]types.BackupSchedule{}, databases: databases},
		NetworkAccess: &NetworkAccessRepository{items: map[uuid.UUID]types.NetworkAccess{}},
	}
}

func touch(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

type ProjectRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]types.Project
}

func (r *ProjectRepository) Save(_ context.Context, project *types.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touch(&project.CreatedAt, &project.UpdatedAt)
	r.items[project.ID] = *project
	return nil
}

func (r *ProjectRepository) FindByID(_ context.Context, id uuid.UUID) (*types.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, types.NewNotFoundError("project", id)
	}
	return &p, nil
}

func (r *ProjectRepository) FindAll(_ context.Context) ([]*types.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*types.Project, 0, len(r.items))
	for _, p := range r.items {
		p := p
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *ProjectRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type ServerRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]types.DatabaseServer
}

func (r *ServerRepository) Save(_ context.Context, server *types.DatabaseServer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touch(&server.CreatedAt, &server.UpdatedAt)
	r.items[server.ID] = *server
	return nil
}

func (r *ServerRepository) FindByID(_ context.Context, id uuid.UUID) (*types.DatabaseServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, types.NewNotFoundError("server", id)
	}
	return &s, nil
}

func (r *ServerRepository) FindAll(_ context.Context) ([]*types.DatabaseServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*types.DatabaseServer, 0, len(r.items))
	for _, s := range r.items {
		s := s
		result = append(result, &s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *ServerRepository) UpdateSecret(_ context.Context, id uuid.UUID, encryptedSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return types.NewNotFoundError("server", id)
	}
	s.EncryptedSecret = encryptedSecret
	s.UpdatedAt = time.Now()
	r.items[id] = s
	return nil
}

func (r *ServerRepository) ClearProject(_ context.Context, projectID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cleared int64
	for id, s := range r.items {
		if s.ProjectID != projectID {
			continue
		}
		s.ProjectID = uuid.Nil
		r.items[id] = s
		cleared++
	}
	return cleared, nil
}

func (r *ServerRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type DatabaseRepository struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]types.Database
	servers *ServerRepository
}

func (r *DatabaseRepository) Save(_ context.Context, db *types.Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touch(&db.CreatedAt, &db.UpdatedAt)
	stored := *db
	stored.Server = nil
	r.items[db.ID] = stored
	return nil
}

func (r *DatabaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.Database, error) {
	r.mu.RLock()
	d, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewNotFoundError("database", id)
	}
	return r.preload(ctx, d), nil
}

func (r *DatabaseRepository) FindAll(ctx context.Context) ([]*types.Database, error) {
	return r.filter(ctx, func(types.Database) bool { return true }), nil
}

func (r *DatabaseRepository) FindByServerID(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error) {
	return r.filter(ctx, func(d types.Database) bool { return d.ServerID == serverID }), nil
}

func (r *DatabaseRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *DatabaseRepository) filter(ctx context.Context, keep func(types.Database) bool) []*types.Database {
	r.mu.RLock()
	matched := make([]types.Database, 0)
	for _, d := range r.items {
		if keep(d) {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	result := make([]*types.Database, 0, len(matched))
	for _, d := range matched {
		result = append(result, r.preload(ctx, d))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (r *DatabaseRepository) preload(ctx context.Context, d types.Database) *types.Database {
	if server, err := r.servers.FindByID(ctx, d.ServerID); err == nil {
		d.Server = server
	}
	return &d
}

type BackupRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]types.BackupRecord
}

func (r *BackupRepository) Save(_ context.Context, record *types.BackupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touch(&record.CreatedAt, &record.UpdatedAt)
	r.items[record.ID] = *record
	return nil
}

func (r *BackupRepository) FindByID(_ context.Context, id uuid.UUID) (*types.BackupRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, types.NewNotFoundError("backup", id)
	}
	return &b, nil
}

func (r *BackupRepository) FindAll(_ context.Context, filter types.BackupFilter) ([]*types.BackupRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*types.BackupRecord, 0)
	for _, b := range r.items {
		if filter.DatabaseID != uuid.Nil && b.DatabaseID != filter.DatabaseID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		b := b
		result = append(result, &b)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *BackupRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type ScheduleRepository struct {
	mu        sync.RWMutex
	items     map[uuid.UUID]types.BackupSchedule
	databases *DatabaseRepository
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *types.BackupSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	touch(&schedule.CreatedAt, &schedule.UpdatedAt)
	stored := *schedule
	stored.Database = nil
	r.items[schedule.ID] = stored
	return nil
}

func (r *ScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.BackupSchedule, error) {
	r.mu.RLock()
	s, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewNotFoundError("schedule", id)
	}
	return r.preload(ctx, s), nil
}

func (r *ScheduleRepository) FindAll(ctx context.Context) ([]*types.BackupSchedule, error) {
	return r.filter(ctx, func(types.BackupSchedule) bool { return true }), nil
}

func (r *ScheduleRepository) FindEnabled(ctx context.Context) ([]*types.BackupSchedule, error) {
	return r.filter(ctx, func(s types.BackupSchedule) bool { return s.Enabled }), nil
}

func (r *ScheduleRepository) FindByDatabaseID(ctx context.Context, databaseID uuid.UUID) ([]*types.BackupSchedule, error) {
	return r.filter(ctx, func(s types.BackupSchedule) bool { return s.DatabaseID == databaseID }), nil
}

func (r *ScheduleRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *ScheduleRepository) filter(ctx context.Context, keep func(types.BackupSchedule) bool) []*types.BackupSchedule {
	r.mu.RLock()
	matched := make([]types.BackupSchedule, 0)
	for _, s := range r.items {
		if keep(s) {
			matched = append(matched, s)
		}
	}
	r.mu.RUnlock()

	result := make([]*types.BackupSchedule, 0, len(matched))
	for _, s := range matched {
		result = append(result, r.preload(ctx, s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (r *ScheduleRepository) preload(ctx context.Context, s types.BackupSchedule) *types.BackupSchedule {
	if db, err := r.databases.FindByID(ctx, s.DatabaseID); err == nil {
		s.Database = db
	}
	return &s
}

type NetworkAccessRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]types.NetworkAccess
}

func (r *NetworkAccessRepository) Save(_ context.Context, na *types.NetworkAccess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if na.CreatedAt.IsZero() {
		na.CreatedAt = time.Now()
	}
	r.items[na.ID] = *na
	return nil
}

func (r *NetworkAccessRepository) FindByServerID(_ context.Context, serverID uuid.UUID) ([]*types.NetworkAccess, error) {
	return r.filter(func(na types.NetworkAccess) bool { return na.ServerID == serverID }), nil
}

func (r *NetworkAccessRepository) Find(_ context.Context, serverID uuid.UUID, ip string) (*types.NetworkAccess, error) {
	found := r.filter(func(na types.NetworkAccess) bool { return na.ServerID == serverID && na.IP == ip })
	if len(found) == 0 {
		return nil, types.NewNotFoundError("network access", serverID)
	}
	return found[0], nil
}

func (r *NetworkAccessRepository) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *NetworkAccessRepository) filter(keep func(types.NetworkAccess) bool) []*types.NetworkAccess {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*types.NetworkAccess, 0)
	for _, na := range r.items {
		if keep(na) {
			na := na
			result = append(result, &na)
		}
	}
	return result
}
