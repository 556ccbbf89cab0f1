package storage

import (
	"context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"nexdb/internal/config"
	"nexdb/internal/types"
)

const defaultMinioEndpoint = "s3.amazonaws.com"

type objectStorage struct {
	client *minio.Client
	bucket string
	region string
}

func NewObjectStorage(cfg config.RemoteConfig) (Storage, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultMinioEndpoint
	}

	mn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &objectStorage{
		client: mn,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

func (s objectStorage) Save(ctx context.Context, location string, file types.File) error {
	if err := s.makeBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, location, file.Content, file.Stat.Size, minio.PutObjectOptions{
		ContentType: file.GetContentType(),
		PartSize:    uint64(partSize),
	})
	return err
}

func (s objectStorage) Get(ctx context.Context, location string) (*types.File, error) {
	r, err := s.client.GetObject(ctx, s.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	stat, err := r.Stat()
	if err != nil {
		_ = r.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &types.NotFoundError{Kind: "object", ID: location}
		}
		return nil, err
	}

	return &types.File{
		Content: r,
		Stat: types.FileStat{
			Size:        stat.Size,
			Name:        stat.Key,
			ContentType: stat.ContentType,
		},
	}, nil
}

func (s objectStorage) makeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
		Region: s.region,
	})
}

func (s objectStorage) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	return err
}
