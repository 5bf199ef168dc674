package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/thumbnailer/internal/api/model"
	"github.com/cuongbtq/thumbnailer/internal/api/storage"
)

// Publisher enqueues a job body on the worker queue
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// RenditionStore lists recorded renditions
type RenditionStore interface {
	ListRenditions(ctx context.Context, filter storage.RenditionFilter) ([]model.Rendition, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Publisher   Publisher
	Renditions  RenditionStore                  // nil when the ledger is disabled
	HealthCheck func(ctx context.Context) error // optional
	ServiceName string
}

// ThumbnailHandler handles thumbnail job and rendition requests
type ThumbnailHandler struct {
	logger     *slog.Logger
	publisher  Publisher
	renditions RenditionStore
}

// NewThumbnailHandler creates a new ThumbnailHandler instance
func NewThumbnailHandler(deps *Dependencies) *ThumbnailHandler {
	return &ThumbnailHandler{
		logger:     deps.Logger,
		publisher:  deps.Publisher,
		renditions: deps.Renditions,
	}
}
