package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/okian/civiclens/internal/domain/model"
)

// MinioConfig holds connection settings for an S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicBaseURL overrides how object URLs are built, e.g. a CDN in front of the bucket.
	PublicBaseURL string
}

// MinioStore implements ObjectStore on minio-go.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinio connects and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: endpoint and bucket are required", ErrNotConfigured)
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, model.NewError("bucket exists", model.ErrStorage, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, model.NewError("make bucket", model.ErrStorage, err)
		}
	}

	return &MinioStore{
		client:  cli,
		bucket:  cfg.Bucket,
		baseURL: objectBaseURL(cfg),
	}, nil
}

// objectBaseURL returns the prefix object keys are appended to.
func objectBaseURL(cfg MinioConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

func objectURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", model.NewError("put object", model.ErrStorage, err)
	}
	return objectURL(s.baseURL, key), nil
}

func (s *MinioStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	failed := 0
	var firstErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = rerr.Err
		}
	}
	deleted := len(keys) - failed
	if firstErr != nil {
		return deleted, model.NewError("remove objects", model.ErrStorage, firstErr)
	}
	return deleted, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return keys, model.NewError("list objects", model.ErrStorage, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
