package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/api/domain"
	"github.com/cuongbtq/thumbnailer/internal/api/storage"
)

// DecodeRenditionCursor parses a cursor produced by EncodeRenditionCursor.
// An empty string means the first page.
func DecodeRenditionCursor(cursorStr string) (*storage.RenditionCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}

	createdAtPart, idPart, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", domain.ErrInvalidCursor)
	}

	createdAt, err := strconv.ParseInt(createdAtPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid created_at: %v", domain.ErrInvalidCursor, err)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id: %v", domain.ErrInvalidCursor, err)
	}

	return &storage.RenditionCursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        id,
	}, nil
}

func EncodeRenditionCursor(cursor *storage.RenditionCursor) string {
	cs := fmt.Sprintf("%d|%d", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}
