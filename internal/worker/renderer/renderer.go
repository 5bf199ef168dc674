package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	defaultQuality = 85
	formatWebP     = "webp"
)

var (
	// ErrInvalidDimensions is returned when a description has no usable width or height
	ErrInvalidDimensions = errors.New("invalid thumbnail dimensions")

	// ErrUnsupportedFormat is returned for output formats that cannot be encoded
	ErrUnsupportedFormat = errors.New("unsupported thumbnail format")

	// ErrUnknownStrategy is returned for unrecognized resize strategies
	ErrUnknownStrategy = errors.New("unknown resize strategy")
)

// Config holds renderer configuration
type Config struct {
	ScratchDir string
	Quality    int
}

// Renderer resizes images with imaging and writes them to the scratch directory
type Renderer struct {
	scratchDir string
	quality    int
	logger     *slog.Logger
}

// New creates a new Renderer
func New(cfg Config, logger *slog.Logger) *Renderer {
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	scratchDir := cfg.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	return &Renderer{
		scratchDir: scratchDir,
		quality:    quality,
		logger:     logger,
	}
}

// Render writes one resized rendition of sourcePath and returns its local path.
// The caller owns the returned file; nothing is left behind on failure.
func (r *Renderer) Render(ctx context.Context, d domain.ThumbnailDescription, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if d.Width < 0 || d.Height < 0 || (d.Width == 0 && d.Height == 0) {
		return "", fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}

	format := normalizeFormat(d.Format)

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open source image: %w", err)
	}

	img, err := resize(src, d)
	if err != nil {
		return "", err
	}

	quality := r.quality
	if d.Quality > 0 && d.Quality <= 100 {
		quality = d.Quality
	}

	outPath := filepath.Join(r.scratchDir, uuid.NewString()+"."+format)
	if err := encodeFile(outPath, img, format, quality); err != nil {
		_ = os.Remove(outPath)
		return "", err
	}

	r.logger.Debug("Thumbnail rendered",
		slog.String("suffix", d.Suffix),
		slog.String("path", outPath),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)

	return outPath, nil
}

func resize(src image.Image, d domain.ThumbnailDescription) (image.Image, error) {
	switch strings.ToLower(d.Strategy) {
	case "", domain.StrategyBounded:
		if d.Width == 0 || d.Height == 0 {
			return imaging.Resize(src, d.Width, d.Height, imaging.Lanczos), nil
		}
		return imaging.Fit(src, d.Width, d.Height, imaging.Lanczos), nil

	case domain.StrategyFill:
		if d.Width == 0 || d.Height == 0 {
			return nil, fmt.Errorf("%w: fill requires both width and height", ErrInvalidDimensions)
		}
		return imaging.Fill(src, d.Width, d.Height, imaging.Center, imaging.Lanczos), nil

	case domain.StrategyStrict:
		return imaging.Resize(src, d.Width, d.Height, imaging.Lanczos), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, d.Strategy)
	}
}

func encodeFile(path string, img image.Image, format string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rendition file: %w", err)
	}

	if format == formatWebP {
		err = webp.Encode(f, img, &webp.Options{Quality: float32(quality)})
	} else {
		var imgFormat imaging.Format
		imgFormat, err = imaging.FormatFromExtension(format)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}
		err = imaging.Encode(f, img, imgFormat, imaging.JPEGQuality(quality))
	}

	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s rendition: %w", format, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write rendition file: %w", err)
	}
	return nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		return domain.DefaultFormat
	}
	return format
}
