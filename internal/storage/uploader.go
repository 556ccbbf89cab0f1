package storage

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nexdb/internal/config"
	"nexdb/internal/misc"
	"nexdb/internal/types"
	"nexdb/logger"
	"time"
)

const keyTimestampLayout = "20060102_150405"

type (
	// Uploader copies finished dumps to remote object storage. A single attempt is made per call.
	Uploader interface {
		Upload(ctx context.Context, localPath, key string) (string, error)
		Download(ctx context.Context, key string) (*types.File, error)
		Enabled() bool
		Ping(ctx context.Context) error
	}

	uploader struct {
		st Storage
	}

	disabledUploader struct{}
)

// NewUploader picks the storage driver from cfg. Without a bucket and credentials uploads are disabled.
func NewUploader(ctx context.Context, cfg config.RemoteConfig) (Uploader, error) {
	if !cfg.HasRemote() {
		logger.Info("remote storage not configured, uploads disabled")
		return disabledUploader{}, nil
	}

	st, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("remote storage configured",
		zap.String("driver", cfg.Driver),
		zap.String("bucket", cfg.Bucket))
	return NewStorageUploader(st), nil
}

func NewStorageUploader(st Storage) Uploader {
	return &uploader{st: st}
}

func (u *uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := types.OpenFile(localPath)
	if err != nil {
		return "", &types.UploadFailedError{Key: key, Cause: err}
	}
	defer func() {
		_ = f.Content.Close()
	}()

	if err := u.st.Save(ctx, key, *f); err != nil {
		logger.Error("upload failed",
			zap.String("key", key),
			zap.Error(err))
		return "", &types.UploadFailedError{Key: key, Cause: err}
	}

	logger.Info("upload completed",
		zap.String("key", key),
		zap.Int64("size", f.Stat.Size))
	return key, nil
}

func (u *uploader) Download(ctx context.Context, key string) (*types.File, error) {
	return u.st.Get(ctx, key)
}

func (u *uploader) Enabled() bool {
	return true
}

func (u *uploader) Ping(ctx context.Context) error {
	return u.st.Ping(ctx)
}

func (disabledUploader) Upload(context.Context, string, string) (string, error) {
	return "", types.ErrRemoteDisabled
}

func (disabledUploader) Download(context.Context, string) (*types.File, error) {
	return nil, types.ErrRemoteDisabled
}

func (disabledUploader) Enabled() bool {
	return false
}

func (disabledUploader) Ping(context.Context) error {
	return types.ErrRemoteDisabled
}

// FlatKey is the remote key of a manually triggered backup
func FlatKey(database string, t time.Time) string {
	return fmt.Sprintf("backups/%s_%s.sql", misc.SanitizeFilename(database), t.Format(keyTimestampLayout))
}

// ScopedKey is the remote key of a schedule triggered backup
func ScopedKey(projectID, databaseID uuid.UUID, filename string) string {
	return fmt.Sprintf("backups/project_%s/database_%s/%s", projectID, databaseID, filename)
}
