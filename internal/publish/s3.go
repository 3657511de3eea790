package publish

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/elxreno/shipgrid/internal/config"
)

// S3Store is object-store-backed artifact storage in a single bucket.
// Ephemeral entries are keyed runs/<run-id>/<name>, release entries
// releases/<tag>/<name>. PutObject replaces an existing key, so re-publishing
// a release converges instead of accumulating duplicates.
type S3Store struct {
	client *minio.Client
	bucket string
	runID  string
}

// NewS3Store dials the object store. Credentials arrive as explicit
// run-scoped configuration, never from ambient process state.
func NewS3Store(cfg config.S3Sink, runID string) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, runID: runID}, nil
}

// Store implements EphemeralSink.
func (s *S3Store) Store(ctx context.Context, name string, srcPath string) (string, error) {
	return s.put(ctx, fmt.Sprintf("runs/%s/%s", s.runID, name), srcPath)
}

// Publish implements ReleaseSink.
func (s *S3Store) Publish(ctx context.Context, tag string, name string, srcPath string) (string, error) {
	return s.put(ctx, fmt.Sprintf("releases/%s/%s", tag, name), srcPath)
}

func (s *S3Store) put(ctx context.Context, key string, srcPath string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucket, key, srcPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
