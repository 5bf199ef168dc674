package worker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
)

// Renderer produces a local rendered file from a source image
type Renderer interface {
	Render(ctx context.Context, d domain.ThumbnailDescription, sourcePath string) (string, error)
}

// Uploader writes a local file to durable storage under a key or URL
type Uploader interface {
	Upload(ctx context.Context, localPath, destination string) error
}

// RenditionUnit renders, uploads and cleans up exactly one rendition
type RenditionUnit struct {
	renderer Renderer
	uploader Uploader
	logger   *slog.Logger
}

// NewRenditionUnit creates a new RenditionUnit
func NewRenditionUnit(renderer Renderer, uploader Uploader, logger *slog.Logger) *RenditionUnit {
	return &RenditionUnit{
		renderer: renderer,
		uploader: uploader,
		logger:   logger,
	}
}

// Run produces and persists one rendition of the already downloaded source image
func (u *RenditionUnit) Run(ctx context.Context, original, sourcePath string, d domain.ThumbnailDescription) domain.RenditionResult {
	key := destinationKey(original, d)
	result := domain.RenditionResult{Description: d, Key: key}

	renderedPath, err := u.renderer.Render(ctx, d, sourcePath)
	if err != nil {
		u.logger.Error("Failed to render thumbnail",
			slog.String("key", key),
			slog.String("suffix", d.Suffix),
			slog.Any("error", err),
		)
		result.Err = &domain.RenditionError{Stage: domain.StageRender, Key: key, Err: err}
		return result
	}
	defer u.removeScratch(renderedPath)

	if err := u.uploader.Upload(ctx, renderedPath, key); err != nil {
		u.logger.Error("Failed to upload thumbnail",
			slog.String("key", key),
			slog.String("suffix", d.Suffix),
			slog.Any("error", err),
		)
		result.Err = &domain.RenditionError{Stage: domain.StageUpload, Key: key, Err: err}
		return result
	}

	u.logger.Info("Thumbnail saved",
		slog.String("key", key),
		slog.String("suffix", d.Suffix),
		slog.Int("width", d.Width),
		slog.Int("height", d.Height),
	)

	return result
}

func (u *RenditionUnit) removeScratch(path string) {
	removeScratch(u.logger, path)
}

// removeScratch deletes a scratch file, ignoring files that are already gone
func removeScratch(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove scratch file",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}
