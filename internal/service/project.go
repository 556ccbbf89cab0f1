package service

import (
	"context"
	"github.com/google/uuid"
	errors2 "github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/database"
	"nexdb/internal/types"
	"nexdb/logger"
	"time"
)

type (
	ProjectService interface {
		Create(ctx context.Context, params types.CreateProjectParams) (*types.Project, error)
		Get(ctx context.Context, id uuid.UUID) (*types.Project, error)
		List(ctx context.Context) ([]*types.Project, error)
		Update(ctx context.Context, id uuid.UUID, params types.UpdateProjectParams) (*types.Project, error)
		// Delete removes the project; its servers stay registered without a project
		Delete(ctx context.Context, id uuid.UUID) error
	}

	DatabaseService interface {
		Add(ctx context.Context, serverID uuid.UUID, params types.AddDatabaseParams) (*types.Database, error)
		Get(ctx context.Context, id uuid.UUID) (*types.Database, error)
		List(ctx context.Context) ([]*types.Database, error)
		ListByServer(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	projectService struct {
		repository database.ProjectRepository
		servers    database.ServerRepository
	}

	databaseService struct {
		servers    database.ServerRepository
		repository database.DatabaseRepository
	}
)

func NewProjectService(repo database.ProjectRepository, servers database.ServerRepository) ProjectService {
	return &projectService{repository: repo, servers: servers}
}

func (p *projectService) Create(ctx context.Context, params types.CreateProjectParams) (*types.Project, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	project := &types.Project{
		ID:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   time.Now(),
	}
	if err := p.repository.Save(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (p *projectService) Get(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	return p.repository.FindByID(ctx, id)
}

func (p *projectService) List(ctx context.Context) ([]*types.Project, error) {
	return p.repository.FindAll(ctx)
}

func (p *projectService) Update(ctx context.Context, id uuid.UUID, params types.UpdateProjectParams) (*types.Project, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	project, err := p.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		project.Name = *params.Name
	}
	if params.Description != nil {
		project.Description = *params.Description
	}
	if err := p.repository.Save(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (p *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := p.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}

	cleared, err := p.servers.ClearProject(ctx, id)
	if err != nil {
		return errors2.Wrap(err, "failed to detach servers from project")
	}
	if err := p.repository.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info("project deleted",
		zap.String("id", id.String()),
		zap.String("name", project.Name),
		zap.Int64("servers", cleared))
	return nil
}

func NewDatabaseService(servers database.ServerRepository, repo database.DatabaseRepository) DatabaseService {
	return &databaseService{servers: servers, repository: repo}
}

func (d *databaseService) Add(ctx context.Context, serverID uuid.UUID, params types.AddDatabaseParams) (*types.Database, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	server, err := d.servers.FindByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	db := &types.Database{
		ID:          uuid.New(),
		ServerID:    server.ID,
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   time.Now(),
	}
	if err := d.repository.Save(ctx, db); err != nil {
		return nil, err
	}
	db.Server = server
	return db, nil
}

func (d *databaseService) Get(ctx context.Context, id uuid.UUID) (*types.Database, error) {
	return d.repository.FindByID(ctx, id)
}

func (d *databaseService) List(ctx context.Context) ([]*types.Database, error) {
	return d.repository.FindAll(ctx)
}

func (d *databaseService) ListByServer(ctx context.Context, serverID uuid.UUID) ([]*types.Database, error) {
	return d.repository.FindByServerID(ctx, serverID)
}

func (d *databaseService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := d.repository.FindByID(ctx, id); err != nil {
		return err
	}
	return d.repository.Delete(ctx, id)
}
