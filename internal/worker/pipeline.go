package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
)

// Downloader materializes a remote object as a local scratch file
type Downloader interface {
	Download(ctx context.Context, remoteKey string) (string, error)
}

// Pipeline runs one job end to end: download the original, render every
// description concurrently, and remove the downloaded scratch file.
type Pipeline struct {
	downloader Downloader
	unit       *RenditionUnit
	logger     *slog.Logger
}

// NewPipeline creates a pipeline over the given storage and renderer implementations
func NewPipeline(downloader Downloader, uploader Uploader, renderer Renderer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		downloader: downloader,
		unit:       NewRenditionUnit(renderer, uploader, logger),
		logger:     logger,
	}
}

// Run processes the job and returns the outcome of every rendition.
// The error is a *domain.DownloadError when the original could not be fetched,
// or a *domain.JobError listing every failed rendition.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) ([]domain.RenditionResult, error) {
	if job.Original == "" {
		return nil, &domain.DownloadError{Original: job.Original, Err: domain.ErrInvalidJob}
	}

	start := time.Now()

	sourcePath, err := p.downloader.Download(ctx, job.Original)
	if err != nil {
		p.logger.Error("Failed to download original",
			slog.String("original", job.Original),
			slog.Any("error", err),
		)
		return nil, &domain.DownloadError{Original: job.Original, Err: err}
	}
	defer removeScratch(p.logger, sourcePath)

	p.logger.Debug("Original downloaded",
		slog.String("original", job.Original),
		slog.String("local_path", sourcePath),
		slog.Int("descriptions", len(job.Descriptions)),
	)

	results := p.renderAll(ctx, job, sourcePath)

	var failures []*domain.RenditionError
	for _, r := range results {
		var renditionErr *domain.RenditionError
		if errors.As(r.Err, &renditionErr) {
			failures = append(failures, renditionErr)
		}
	}

	if len(failures) > 0 {
		return results, &domain.JobError{Original: job.Original, Failures: failures}
	}

	p.logger.Info("Thumbnails created",
		slog.String("original", job.Original),
		slog.Int("count", len(results)),
		slog.Duration("duration", time.Since(start)),
	)

	return results, nil
}

// renderAll runs one unit per description and waits for all of them,
// regardless of individual failures.
func (p *Pipeline) renderAll(ctx context.Context, job *domain.Job, sourcePath string) []domain.RenditionResult {
	results := make([]domain.RenditionResult, len(job.Descriptions))

	var wg sync.WaitGroup
	for i, d := range job.Descriptions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.unit.Run(ctx, job.Original, sourcePath, d)
		}()
	}
	wg.Wait()

	return results
}
