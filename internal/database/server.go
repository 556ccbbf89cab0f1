package database

import (
	"context"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"nexdb/internal/types"
)

type (
	projectRepository struct {
		db *gorm.DB
	}

	serverRepository struct {
		db *gorm.DB
	}

	databaseRepository struct {
		db *gorm.DB
	}
)

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (p projectRepository) Save(ctx context.Context, project *types.Project) error {
	return p.db.WithContext(ctx).Save(project).Error
}

func (p projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	project := &types.Project{}
	err := p.db.WithContext(ctx).Where("id = ?", id).First(project).Error
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return project, nil
}

func (p projectRepository) FindAll(ctx context.Context) ([]*types.Project, error) {
	result := make([]*types.Project, 0)
	err := p.db.WithContext(ctx).Order("name asc").Find(&result).Error
	return result, err
}

func (p projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return p.db.WithContext(ctx).Where("id = ?", id).Delete(&types.Project{}).Error
}

func NewServerRepository(db *gorm.DB) ServerRepository {
	return &serverRepository{db: db}
}

func (s serverRepository) Save(ctx context.Context, server *types.DatabaseServer) error {
	return s.db.WithContext(ctx).Save(server).Error
}

func (s serverRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.DatabaseServer, error) {
	server := &types.DatabaseServer{}
	err := s.db.WithContext(ctx).Where("id = ?", id).First(server).Error
	if err != nil {
		return nil, notFound(err, "server", id)
	}
	return server, nil
}

func (s serverRepository) FindAll(ctx context.Context) ([]*types.DatabaseServer, error) {
	result := make([]*types.DatabaseServer, 0)
	err := s.db.WithContext(ctx).Order("created_at asc").Find(&result).Error
	return result, err
}

func (s serverRepository) UpdateSecret(ctx context.Context, id uuid.UUID, encryptedSecret string) error {
	tx := s.db.WithContext(ctx).
		Model(&types.DatabaseServer{}).
		Where("id = ?", id).
		Update("encrypted_secret", encryptedSecret)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return types.NewNotFoundError("server", id)
	}
	return nil
}

func (s serverRepository) ClearProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	tx := s.db.WithContext(ctx).
		Model(&types.DatabaseServer{}).
		Where("project_id = ?", projectID).
		Update("project_id", uuid.Nil)
	return tx.RowsAffected, tx.Error
}

func (s serverRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&types.DatabaseServer{}).Error
}

func NewDatabaseRepository(db *gorm.DB) DatabaseRepository {
	return &databaseRepository{db: db}
}

func (d databaseRepository) Save(ctx context.Context, db *types.Database) error {
	return d.db.WithContext(ctx).Omit("Server").Save(db).Error
}

func (d databaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.Database, error) {
	db := &types.Database{}
	err := d.db.WithContext(ctx).Preload("Server").Where("id = ?", id).First(db).Error
	if err != nil {
		return nil, notFound(err, "database", id)
	}
	return db, nil
}

func (d databaseRepository) FindAll(ctx context.Context) ([]*types.Database, error) {
	result := make([]*types.Database, 0)
	err := d.db.WithContext(ctx).Preload("Server").Order("name asc").Find(&result).Error
	return result, err
}

func (d databaseRepository) FindByServerID(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error) {
	result := make([]*types.Database, 0)
	err := d.db.WithContext(ctx).
		Preload("Server").
		Where("server_id = ?", serverID).
		Order("name asc").
		Find(&result).Error
	return result, err
}

func (d databaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Where("id = ?", id).Delete(&types.Database{}).Error
}
