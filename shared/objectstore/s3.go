package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cuongbtq/thumbnailer/shared/awsconfig"
)

// S3Config holds S3 storage configuration
type S3Config struct {
	AWS          awsconfig.Config
	Bucket       string
	ACL          string // canned ACL applied to uploads, e.g. public-read
	StorageClass string // e.g. STANDARD, REDUCED_REDUNDANCY
	UsePathStyle bool
	ScratchDir   string
}

// S3Store downloads originals from and uploads renditions to one S3 bucket
type S3Store struct {
	downloader   *manager.Downloader
	uploader     *manager.Uploader
	bucket       string
	acl          types.ObjectCannedACL
	storageClass types.StorageClass
	scratchDir   string
	logger       *slog.Logger
}

// NewS3Store creates an S3Store from the given configuration
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("S3 storage initialized",
		slog.String("bucket", cfg.Bucket),
		slog.String("region", awsCfg.Region),
	)

	return &S3Store{
		downloader:   manager.NewDownloader(client),
		uploader:     manager.NewUploader(client),
		bucket:       cfg.Bucket,
		acl:          types.ObjectCannedACL(cfg.ACL),
		storageClass: types.StorageClass(cfg.StorageClass),
		scratchDir:   cfg.ScratchDir,
		logger:       logger,
	}, nil
}

// Download fetches remoteKey into a new scratch file and returns its path
func (s *S3Store) Download(ctx context.Context, remoteKey string) (string, error) {
	if remoteKey == "" {
		return "", ErrEmptyKey
	}

	f, err := createScratch(s.scratchDir, remoteKey)
	if err != nil {
		return "", err
	}

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(remoteKey),
	})
	if err != nil {
		discard(f)
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, remoteKey, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}

	s.logger.Debug("Original downloaded",
		slog.String("key", remoteKey),
		slog.Int64("bytes", n),
	)

	return f.Name(), nil
}

// Upload stores localPath under the key derived from destination
func (s *S3Store) Upload(ctx context.Context, localPath, destination string) error {
	key := DestinationKey(destination)
	if key == "" {
		return ErrEmptyKey
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open rendition: %w", err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(DetectContentType(localPath)),
	}
	if s.acl != "" {
		input.ACL = s.acl
	}
	if s.storageClass != "" {
		input.StorageClass = s.storageClass
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Debug("Rendition uploaded",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
	)
	return nil
}
