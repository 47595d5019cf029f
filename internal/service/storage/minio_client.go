package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
	"interviewroom-backend/pkg/resilience"
)

// ObjectStorage is the subset of *minio.Client used for exports
type ObjectStorage interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Config holds MinIO connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioClient wraps MinIO with retry and circuit breaker
type MinioClient struct {
	storage ObjectStorage
	bucket  string
	breaker *resilience.Breaker
}

// NewMinioClient connects to MinIO and makes sure the bucket exists
func NewMinioClient(ctx context.Context, cfg Config, m *metrics.Metrics) (*MinioClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	c := NewMinioClientWithStorage(client, cfg.Bucket, resilience.NewBreaker("minio", resilience.DefaultConfig(), m))
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewMinioClientWithStorage wraps an existing storage backend
func NewMinioClientWithStorage(storage ObjectStorage, bucket string, breaker *resilience.Breaker) *MinioClient {
	if breaker == nil {
		breaker = resilience.NewBreaker("minio", resilience.DefaultConfig(), nil)
	}
	return &MinioClient{
		storage: storage,
		bucket:  bucket,
		breaker: breaker,
	}
}

// EnsureBucket creates the export bucket when missing
func (c *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.storage.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.storage.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.Info("Created export bucket", zap.String("bucket", c.bucket))
	return nil
}

// Upload stores data under objectName. Retries resend the whole payload.
func (c *MinioClient) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	err := c.breaker.Execute(ctx, "put_object", func(ctx context.Context) error {
		_, err := c.storage.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for objectName
func (c *MinioClient) PresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	u, err := c.storage.PresignedGetObject(ctx, c.bucket, objectName, expires, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return u.String(), nil
}

// Bucket returns the configured bucket name
func (c *MinioClient) Bucket() string {
	return c.bucket
}
