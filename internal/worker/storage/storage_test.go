package storage

import (
	"errors"
	"testing"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenditionRows(t *testing.T) {
	results := []domain.RenditionResult{
		{
			Description: domain.ThumbnailDescription{Suffix: "small", Width: 100, Height: 100},
			Key:         "images/photo_small.jpg",
		},
		{
			Description: domain.ThumbnailDescription{Suffix: "large", Width: 800, Format: "png"},
			Key:         "images/photo_large.png",
			Err:         errors.New("upload failed"),
		},
		{
			Description: domain.ThumbnailDescription{Suffix: "hero", Width: 1200, Height: 600, Format: "webp"},
			Key:         "images/photo_hero.webp",
		},
	}

	rows := renditionRows("images/photo.jpg", "worker-1", results)
	require.Len(t, rows, 2)

	assert.Equal(t, renditionRow{
		Original: "images/photo.jpg",
		Key:      "images/photo_small.jpg",
		Suffix:   "small",
		Width:    100,
		Height:   100,
		Format:   "jpg",
		WorkerID: "worker-1",
	}, rows[0])
	assert.Equal(t, "images/photo_hero.webp", rows[1].Key)
	assert.Equal(t, "webp", rows[1].Format)
}

func TestRenditionRows_NoSuccess(t *testing.T) {
	rows := renditionRows("a.jpg", "w", []domain.RenditionResult{
		{Key: "a_s.jpg", Err: errors.New("boom")},
	})
	assert.Empty(t, rows)
}
