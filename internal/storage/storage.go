package storage

import (
	"context"
	"github.com/pkg/errors"
	"nexdb/internal/config"
	"nexdb/internal/types"
)

// Storage is a flat key space of backup files. Keys use forward slashes regardless of the driver.
type Storage interface {
	Save(ctx context.Context, location string, f types.File) error
	Get(ctx context.Context, location string) (*types.File, error)
	// Ping verifies the credentials and that the bucket (or directory) is reachable
	Ping(ctx context.Context) error
}

// multipart uploads of both object storage drivers use this part size
const partSize int64 = 64 * 1024 * 1024

// Open builds the object storage driver named by cfg.Driver, minio when empty
func Open(ctx context.Context, cfg config.RemoteConfig) (Storage, error) {
	var (
		st  Storage
		err error
	)

	switch cfg.Driver {
	case config.RemoteDriverS3:
		st, err = NewS3Storage(ctx, cfg)
	case config.RemoteDriverMinio, "":
		st, err = NewObjectStorage(cfg)
	default:
		return nil, errors.Errorf("unknown remote driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, errors.Wrap(err, "invalid object storage configuration")
	}
	return st, nil
}
