package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/api/domain"
	"github.com/cuongbtq/thumbnailer/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenditionCursor_RoundTrip(t *testing.T) {
	in := &storage.RenditionCursor{
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC),
		ID:        42,
	}

	out, err := DecodeRenditionCursor(EncodeRenditionCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeRenditionCursor(t *testing.T) {
	enc := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr bool
	}{
		{name: "empty cursor", cursor: "", wantNil: true},
		{name: "not base64", cursor: "%%%", wantErr: true},
		{name: "missing separator", cursor: enc("12345"), wantErr: true},
		{name: "bad timestamp", cursor: enc("abc|1"), wantErr: true},
		{name: "bad id", cursor: enc("12345|xyz"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeRenditionCursor(tt.cursor)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidCursor)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
