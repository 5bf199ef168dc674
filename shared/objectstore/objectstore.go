// Package objectstore moves originals and renditions between the scratch
// directory and a remote object store (S3, MinIO or a local directory).
package objectstore

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const defaultContentType = "application/octet-stream"

// ErrEmptyKey is returned when a download or upload has no object key
var ErrEmptyKey = errors.New("object key is empty")

// DestinationKey maps an upload destination to an object key.
// http(s) URLs become host + path (+ "?" + query); anything else is used as is.
func DestinationKey(destination string) string {
	lower := strings.ToLower(destination)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return destination
	}

	u, err := url.Parse(destination)
	if err != nil || u.Host == "" {
		return destination
	}

	key := u.Hostname() + u.Path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// DetectContentType sniffs the MIME type of a local file
func DetectContentType(localPath string) string {
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return defaultContentType
	}
	return mt.String()
}

// scratchPath returns a fresh file path in dir that keeps the key's extension
func scratchPath(dir, key string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, uuid.NewString()+path.Ext(key))
}

// createScratch opens a new scratch file for key
func createScratch(dir, key string) (*os.File, error) {
	f, err := os.Create(scratchPath(dir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return f, nil
}

// discard closes and removes a partially written scratch file
func discard(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

// copyFile copies src to dst, creating dst's parent directories
func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
