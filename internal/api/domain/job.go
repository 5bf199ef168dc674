package domain

import (
	"errors"
)

// Body encodings accepted by the submission endpoint
const (
	EncodingJSON   = "json"
	EncodingBase64 = "base64"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrUnknownEncoding = errors.New("unknown job encoding")
	ErrInvalidCursor   = errors.New("invalid cursor")
)
