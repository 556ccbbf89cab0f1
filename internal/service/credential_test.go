package service

import (
	"context"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexdb/internal/database/memory"
	"nexdb/internal/misc"
	"nexdb/internal/types"
	"testing"
)

func newCredentialStore(t *testing.T) CredentialStore {
	t.Helper()
	enc, err := misc.NewEncryptor(testKey)
	require.NoError(t, err)
	return NewCredentialStore(enc, memory.New().Servers)
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newCredentialStore(t)

	server, err := store.RegisterServer(ctx, types.RegisterServerParams{
		Name:     "primary",
		Engine:   "postgres",
		Host:     "db.internal",
		Username: "backup",
		Secret:   "p@ss word",
	})
	require.NoError(t, err)
	assert.Equal(t, types.EnginePostgres, server.Engine)
	assert.Equal(t, 5432, server.Port)
	assert.NotEmpty(t, server.EncryptedSecret)
	assert.NotContains(t, server.EncryptedSecret, "p@ss word")

	creds, err := store.Decrypt(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, "p@ss word", creds.Secret)
	assert.Equal(t, "db.internal", creds.Host)
	assert.NotContains(t, creds.String(), "p@ss word")

	require.NoError(t, store.UpdateSecret(ctx, server.ID, "rotated"))
	creds, err = store.Decrypt(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated", creds.Secret)
}

func TestCredentialStore_Validation(t *testing.T) {
	ctx := context.Background()
	store := newCredentialStore(t)

	tests := []struct {
		name   string
		params types.RegisterServerParams
	}{
		{name: "missing name", params: types.RegisterServerParams{Engine: "mysql", Host: "db", Username: "root"}},
		{name: "bad host", params: types.RegisterServerParams{Name: "a", Engine: "mysql", Host: "not a host!", Username: "root"}},
		{name: "bad port", params: types.RegisterServerParams{Name: "a", Engine: "mysql", Host: "db", Port: 70000, Username: "root"}},
		{name: "unsupported engine", params: types.RegisterServerParams{Name: "a", Engine: "mongodb", Host: "db", Username: "root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.RegisterServer(ctx, tt.params)
			assert.Error(t, err)
		})
	}

	_, err := store.RegisterServer(ctx, types.RegisterServerParams{Name: "a", Engine: "mongodb", Host: "db", Username: "root"})
	assert.ErrorIs(t, err, types.ErrUnsupportedEngine)
}

func TestCredentialStore_UnknownServer(t *testing.T) {
	store := newCredentialStore(t)
	_, err := store.Decrypt(context.Background(), uuid.New())
	assert.True(t, types.IsNotFound(err))
	assert.True(t, types.IsNotFound(store.UpdateSecret(context.Background(), uuid.New(), "x")))
}
