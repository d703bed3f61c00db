package certificates

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/localnerve/nodues/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore keeps generated certificates.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ObjectKey is the storage key of a registration's certificate.
func ObjectKey(registrationNo string) string {
	return "certificates/" + url.PathEscape(registrationNo) + ".txt"
}

// Storage wraps MinIO/S3 interactions for certificate documents.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// NewStorage creates a MinIO client from the Config.
func NewStorage(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.CertBucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the certificate bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads a certificate document, replacing any earlier version.
func (s *Storage) Put(ctx context.Context, key string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload certificate: %w", err)
	}
	return nil
}

// PresignedURL returns a signed GET URL for a stored certificate.
func (s *Storage) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign certificate: %w", err)
	}
	return u.String(), nil
}
