package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds MinIO storage configuration
type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	ScratchDir string
}

// MinioStore downloads originals from and uploads renditions to one MinIO bucket
type MinioStore struct {
	client     *minio.Client
	bucket     string
	scratchDir string
	logger     *slog.Logger
}

// NewMinioStore creates a MinioStore and checks that the bucket exists
func NewMinioStore(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	logger.Info("MinIO storage initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket),
	)

	return &MinioStore{
		client:     client,
		bucket:     cfg.Bucket,
		scratchDir: cfg.ScratchDir,
		logger:     logger,
	}, nil
}

// Download fetches remoteKey into a new scratch file and returns its path
func (m *MinioStore) Download(ctx context.Context, remoteKey string) (string, error) {
	if remoteKey == "" {
		return "", ErrEmptyKey
	}

	localPath := scratchPath(m.scratchDir, remoteKey)
	if err := m.client.FGetObject(ctx, m.bucket, remoteKey, localPath, minio.GetObjectOptions{}); err != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("failed to download %s/%s: %w", m.bucket, remoteKey, err)
	}

	m.logger.Debug("Original downloaded",
		slog.String("key", remoteKey),
		slog.String("path", localPath),
	)
	return localPath, nil
}

// Upload stores localPath under the key derived from destination
func (m *MinioStore) Upload(ctx context.Context, localPath, destination string) error {
	key := DestinationKey(destination)
	if key == "" {
		return ErrEmptyKey
	}

	info, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: DetectContentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", m.bucket, key, err)
	}

	m.logger.Debug("Rendition uploaded",
		slog.String("bucket", m.bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return nil
}
