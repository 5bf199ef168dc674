package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage records completed renditions in the PostgreSQL ledger
type Storage struct {
	db       *sqlx.DB
	workerID string
	logger   *slog.Logger
}

// renditionRow maps to one row of the renditions table
type renditionRow struct {
	Original string `db:"original"`
	Key      string `db:"key"`
	Suffix   string `db:"suffix"`
	Width    int    `db:"width"`
	Height   int    `db:"height"`
	Format   string `db:"format"`
	WorkerID string `db:"worker_id"`
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, workerID string, logger *slog.Logger) *Storage {
	return &Storage{
		db:       db,
		workerID: workerID,
		logger:   logger,
	}
}

// RecordRenditions upserts one row per successful rendition of original.
// A redelivered job overwrites the rows it produced before.
func (s *Storage) RecordRenditions(ctx context.Context, original string, results []domain.RenditionResult) error {
	rows := renditionRows(original, s.workerID, results)
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO renditions (original, key, suffix, width, height, format, worker_id)
		VALUES (:original, :key, :suffix, :width, :height, :format, :worker_id)
		ON CONFLICT (key) DO UPDATE
		SET original = EXCLUDED.original,
		    suffix = EXCLUDED.suffix,
		    width = EXCLUDED.width,
		    height = EXCLUDED.height,
		    format = EXCLUDED.format,
		    worker_id = EXCLUDED.worker_id,
		    updated_at = NOW()
	`

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to record rendition %s: %w", row.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit renditions: %w", err)
	}

	s.logger.Info("Renditions recorded",
		slog.String("original", original),
		slog.Int("count", len(rows)),
	)

	return nil
}

func renditionRows(original, workerID string, results []domain.RenditionResult) []renditionRow {
	rows := make([]renditionRow, 0, len(results))
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}

		format := r.Description.Format
		if format == "" {
			format = domain.DefaultFormat
		}

		rows = append(rows, renditionRow{
			Original: original,
			Key:      r.Key,
			Suffix:   r.Description.Suffix,
			Width:    r.Description.Width,
			Height:   r.Description.Height,
			Format:   format,
			WorkerID: workerID,
		})
	}
	return rows
}
