package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/api/model"
	"github.com/cuongbtq/thumbnailer/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

type RenditionFilter struct {
	Original string
	Format   string
	PageSize int
	Cursor   *RenditionCursor
}

type RenditionCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListRenditions returns up to PageSize+1 renditions, newest first, so the
// caller can tell whether another page exists
func (s *Storage) ListRenditions(ctx context.Context, filter RenditionFilter) ([]model.Rendition, error) {
	query := `
        SELECT
            id, original, key, suffix, width, height,
            format, worker_id, created_at, updated_at
        FROM renditions
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	if filter.Original != "" {
		query += fmt.Sprintf(" AND original = $%d", argIdx)
		args = append(args, filter.Original)
		argIdx++
	}

	if filter.Format != "" {
		query += fmt.Sprintf(" AND format = $%d", argIdx)
		args = append(args, filter.Format)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var renditions []model.Rendition
	if err := s.db.SelectContext(ctx, &renditions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list renditions: %w", err)
	}

	return renditions, nil
}
