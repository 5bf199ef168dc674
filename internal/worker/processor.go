package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
)

// handleMessage decodes and runs one job, then deletes the message only if
// every step succeeded. A decode failure is returned (and ends the worker)
// unless the skip policy is configured. An invalid job is logged and left for
// redelivery like any other job failure.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	job, err := DecodeJob(msg.Body)
	if err != nil {
		w.reporter.CaptureException(err)

		if errors.Is(err, domain.ErrInvalidJob) {
			w.logger.Error("Invalid thumbnail job, leaving it for redelivery",
				slog.String("handle", msg.Handle),
				slog.String("body", truncate(string(msg.Body), 256)),
				slog.Any("error", err),
			)
			return nil
		}

		if w.decodeFailurePolicy == domain.DecodePolicySkip {
			w.logger.Error("Failed to decode message, leaving it for redelivery",
				slog.String("handle", msg.Handle),
				slog.Int("body_size", len(msg.Body)),
				slog.Any("error", err),
			)
			return nil
		}

		w.logger.Error("Failed to decode message",
			slog.String("handle", msg.Handle),
			slog.String("body", truncate(string(msg.Body), 256)),
			slog.Any("error", err),
		)
		return err
	}

	logger := w.logger.With(
		slog.String("original", job.Original),
		slog.String("handle", msg.Handle),
	)
	logger.Info("Processing thumbnail job",
		slog.Int("descriptions", len(job.Descriptions)),
	)

	start := time.Now()
	results, err := w.pipeline.Run(ctx, job)
	if err != nil {
		// No delete: the queue redelivers the message after its visibility timeout
		logger.Error("Thumbnail job failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		w.reporter.CaptureException(err)
		return nil
	}

	w.ack(ctx, msg)
	w.record(ctx, job, results)

	logger.Info("Thumbnail job completed",
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// RunOnce processes a single job body without a queue, as used by the local
// one-shot mode. The decode and pipeline errors are returned unchanged.
func (w *Worker) RunOnce(ctx context.Context, body []byte) error {
	job, err := DecodeJob(body)
	if err != nil {
		return err
	}

	results, err := w.pipeline.Run(ctx, job)
	if err != nil {
		return err
	}

	w.record(ctx, job, results)
	return nil
}

func (w *Worker) record(ctx context.Context, job *domain.Job, results []domain.RenditionResult) {
	if w.recorder == nil {
		return
	}

	if err := w.recorder.RecordRenditions(ctx, job.Original, results); err != nil {
		w.logger.Warn("Failed to record renditions",
			slog.String("original", job.Original),
			slog.Any("error", err),
		)
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
