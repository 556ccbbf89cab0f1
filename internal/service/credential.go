package service

import (
	"context"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/database"
	"nexdb/internal/misc"
	"nexdb/internal/types"
	"nexdb/logger"
	"time"
)

// CredentialStore is the only owner of server secrets. Secrets leave it decrypted only as
// types.Credentials handed to a single operation.
type CredentialStore interface {
	RegisterServer(ctx context.Context, params types.RegisterServerParams) (*types.DatabaseServer, error)
	UpdateSecret(ctx context.Context, serverID uuid.UUID, secret string) error
	FindServer(ctx context.Context, serverID uuid.UUID) (*types.DatabaseServer, error)
	ListServers(ctx context.Context) ([]*types.DatabaseServer, error)
	DeleteServer(ctx context.Context, serverID uuid.UUID) error
	Decrypt(ctx context.Context, serverID uuid.UUID) (types.Credentials, error)
	CredentialsFor(server *types.DatabaseServer) (types.Credentials, error)
}

type credentialStore struct {
	encryptor  misc.Encryptor
	repository database.ServerRepository
}

func NewCredentialStore(enc misc.Encryptor, repo database.ServerRepository) CredentialStore {
	return &credentialStore{
		encryptor:  enc,
		repository: repo,
	}
}

// CredentialsFromParams builds the credentials described by registration params without storing them
func CredentialsFromParams(params types.RegisterServerParams) (types.Credentials, error) {
	engine, err := types.ParseEngine(params.Engine)
	if err != nil {
		return types.Credentials{}, err
	}

	port := params.Port
	if port <= 0 {
		port = engine.DefaultPort()
	}
	return types.Credentials{
		Engine:   engine,
		Host:     params.Host,
		Port:     port,
		Username: params.Username,
		Secret:   params.Secret,
	}, nil
}

func (c *credentialStore) RegisterServer(ctx context.Context, params types.RegisterServerParams) (*types.DatabaseServer, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	creds, err := CredentialsFromParams(params)
	if err != nil {
		return nil, err
	}

	encrypted, err := c.encryptor.Encrypt(params.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt server secret")
	}

	server := &types.DatabaseServer{
		ID:              uuid.New(),
		ProjectID:       params.ProjectID,
		Name:            params.Name,
		Description:     params.Description,
		Engine:          creds.Engine,
		Host:            creds.Host,
		Port:            creds.Port,
		Username:        creds.Username,
		EncryptedSecret: encrypted,
		CreatedAt:       time.Now(),
	}
	if err := c.repository.Save(ctx, server); err != nil {
		return nil, err
	}

	logger.Info("database server registered",
		zap.String("id", server.ID.String()),
		zap.String("server", creds.String()))
	return server, nil
}

func (c *credentialStore) UpdateSecret(ctx context.Context, serverID uuid.UUID, secret string) error {
	encrypted, err := c.encryptor.Encrypt(secret)
	if err != nil {
		return errors.Wrap(err, "failed to encrypt server secret")
	}
	return c.repository.UpdateSecret(ctx, serverID, encrypted)
}

func (c *credentialStore) FindServer(ctx context.Context, serverID uuid.UUID) (*types.DatabaseServer, error) {
	return c.repository.FindByID(ctx, serverID)
}

func (c *credentialStore) ListServers(ctx context.Context) ([]*types.DatabaseServer, error) {
	return c.repository.FindAll(ctx)
}

func (c *credentialStore) DeleteServer(ctx context.Context, serverID uuid.UUID) error {
	return c.repository.Delete(ctx, serverID)
}

func (c *credentialStore) Decrypt(ctx context.Context, serverID uuid.UUID) (types.Credentials, error) {
	server, err := c.repository.FindByID(ctx, serverID)
	if err != nil {
		return types.Credentials{}, err
	}
	return c.CredentialsFor(server)
}

func (c *credentialStore) CredentialsFor(server *types.DatabaseServer) (types.Credentials, error) {
	secret, err := c.encryptor.Decrypt(server.EncryptedSecret)
	if err != nil {
		return types.Credentials{}, errors.Wrapf(err, "failed to decrypt secret of server %s", server.ID)
	}

	return types.Credentials{
		Engine:   server.Engine,
		Host:     server.Host,
		Port:     server.EffectivePort(),
		Username: server.Username,
		Secret:   secret,
	}, nil
}
