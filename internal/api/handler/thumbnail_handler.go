package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/api/domain"
	"github.com/cuongbtq/thumbnailer/internal/api/dto"
	"github.com/cuongbtq/thumbnailer/internal/api/storage"
	workerdomain "github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/gin-gonic/gin"
)

// EnqueueThumbnails handles POST /api/v1/thumbnails
// Validates a thumbnail job and publishes it to the worker queue.
// ?encoding=base64 publishes the JSON body base64-encoded.
func (h *ThumbnailHandler) EnqueueThumbnails(c *gin.Context) {
	encoding := c.DefaultQuery("encoding", domain.EncodingJSON)

	var req dto.CreateThumbnailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	body, contentType, err := encodeJob(toJob(&req), encoding)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), body, contentType); err != nil {
		h.logger.Error("Failed to publish thumbnail job",
			slog.String("original", req.Original),
			slog.Any("error", err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to enqueue thumbnail job",
		})
		return
	}

	h.logger.Info("Thumbnail job enqueued",
		slog.String("original", req.Original),
		slog.Int("descriptions", len(req.Descriptions)),
		slog.String("encoding", encoding),
	)

	c.JSON(http.StatusAccepted, dto.CreateThumbnailJobResponse{
		Original:     req.Original,
		Descriptions: len(req.Descriptions),
		Encoding:     encoding,
		Status:       "queued",
	})
}

// ListRenditions handles GET /api/v1/renditions
// Lists recorded renditions with optional filtering and cursor pagination
func (h *ThumbnailHandler) ListRenditions(c *gin.Context) {
	if h.renditions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Rendition ledger is disabled",
		})
		return
	}

	var req dto.ListRenditionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = domain.DefaultPageSize
	}
	if req.PageSize > domain.MaxPageSize {
		req.PageSize = domain.MaxPageSize
	}

	cursor, err := DecodeRenditionCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	renditions, err := h.renditions.ListRenditions(c.Request.Context(), storage.RenditionFilter{
		Original: req.Original,
		Format:   req.Format,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list renditions", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list renditions",
		})
		return
	}

	hasMore := len(renditions) > req.PageSize
	if hasMore {
		renditions = renditions[:req.PageSize]
	}

	items := make([]dto.RenditionDTO, len(renditions))
	for i, r := range renditions {
		items[i] = dto.RenditionDTO{
			Original:  r.Original,
			Key:       r.Key,
			Suffix:    r.Suffix,
			Width:     r.Width,
			Height:    r.Height,
			Format:    r.Format,
			WorkerID:  r.WorkerID,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := renditions[len(renditions)-1]
		nextCursor = EncodeRenditionCursor(&storage.RenditionCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListRenditionsResponse{
		Renditions: items,
		NextCursor: nextCursor,
	})
}

func toJob(req *dto.CreateThumbnailJobRequest) *workerdomain.Job {
	job := &workerdomain.Job{
		Original:     req.Original,
		Descriptions: make([]workerdomain.ThumbnailDescription, len(req.Descriptions)),
	}
	for i, d := range req.Descriptions {
		job.Descriptions[i] = workerdomain.ThumbnailDescription{
			Suffix:   d.Suffix,
			Width:    d.Width,
			Height:   d.Height,
			Format:   d.Format,
			Path:     d.Path,
			Strategy: d.Strategy,
			Quality:  d.Quality,
		}
	}
	return job
}

// encodeJob serializes job in the wire format the worker decodes
func encodeJob(job *workerdomain.Job, encoding string) ([]byte, string, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, "", err
	}

	switch encoding {
	case domain.EncodingJSON:
		return raw, domain.ContentTypeJSON, nil
	case domain.EncodingBase64:
		return []byte(base64.StdEncoding.EncodeToString(raw)), domain.ContentTypeText, nil
	default:
		return nil, "", fmt.Errorf("%w: %q (must be json or base64)", domain.ErrUnknownEncoding, encoding)
	}
}
