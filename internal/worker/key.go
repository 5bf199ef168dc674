package worker

import (
	"path"
	"strings"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
)

// DeriveKey computes the destination key of a rendition: the original key
// without its extension, followed by "_<suffix>.<format>".
func DeriveKey(original, suffix, format string) string {
	if format == "" {
		format = domain.DefaultFormat
	}

	prefix := strings.TrimSuffix(original, path.Ext(original))
	return prefix + "_" + suffix + "." + format
}

// destinationKey returns the explicit path of a description or its derived key
func destinationKey(original string, d domain.ThumbnailDescription) string {
	if d.Path != "" {
		return d.Path
	}
	return DeriveKey(original, d.Suffix, d.Format)
}
