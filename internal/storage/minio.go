package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Ensure MinioStore implements BlobStore.
var _ BlobStore = (*MinioStore)(nil)

// MinioStore keeps blobs in a single S3-compatible bucket. Refs are object
// keys within the bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// MinioConfig holds the connection settings for an S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("minio: put %q: %w", key, err)
	}
	return key, nil
}

func (s *MinioStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %q: %w", ref, err)
	}
	return obj, nil
}

func (s *MinioStore) Stat(ctx context.Context, ref string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("minio: stat %q: %w", ref, err)
	}
	return info.Size, nil
}

func (s *MinioStore) Fetch(ctx context.Context, ref, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, ref, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("minio: fetch %q: %w", ref, err)
	}
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, ref string) error {
	err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("minio: remove %q: %w", ref, err)
	}
	return nil
}
