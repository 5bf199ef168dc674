package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// LocalStore serves objects from a directory tree, keyed by slash-separated paths
type LocalStore struct {
	root       string
	scratchDir string
	logger     *slog.Logger
}

// NewLocalStore creates a LocalStore rooted at root
func NewLocalStore(root, scratchDir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	logger.Info("Local storage initialized",
		slog.String("root", root),
	)

	return &LocalStore{
		root:       root,
		scratchDir: scratchDir,
		logger:     logger,
	}, nil
}

// Download copies the object at remoteKey into a new scratch file
func (l *LocalStore) Download(ctx context.Context, remoteKey string) (string, error) {
	if remoteKey == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	localPath := scratchPath(l.scratchDir, remoteKey)
	if err := copyFile(localPath, l.objectPath(remoteKey)); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", remoteKey, err)
	}
	return localPath, nil
}

// Upload copies localPath to the object derived from destination
func (l *LocalStore) Upload(ctx context.Context, localPath, destination string) error {
	key := DestinationKey(destination)
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := copyFile(l.objectPath(key), localPath); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	l.logger.Debug("Rendition uploaded",
		slog.String("root", l.root),
		slog.String("key", key),
	)
	return nil
}

// objectPath maps key inside root; ".." segments cannot escape it
func (l *LocalStore) objectPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(path.Clean("/"+key)))
}
