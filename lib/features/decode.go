package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

var (
	ErrEmptyImage    = errors.New("features: image is empty")
	ErrImageTooLarge = errors.New("features: image is too large")
	ErrDecode        = errors.New("features: can't decode image")
)

// DefaultMaxPixels bounds the decoded size of an upload.
const DefaultMaxPixels = 4096 * 4096

// Decoder decodes and analyzes uploads with bounded concurrency so that a
// burst of large drawings can't starve request handling.
type Decoder struct {
	sem       *semaphore.Weighted
	extractor *Extractor
	maxPixels int
}

// NewDecoder creates a Decoder running at most concurrency decodes at once.
// A concurrency below one means GOMAXPROCS.
func NewDecoder(concurrency int, maxPixels int, ex *Extractor) *Decoder {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	if ex == nil {
		ex = &Extractor{}
	}

	return &Decoder{
		sem:       semaphore.NewWeighted(int64(concurrency)),
		extractor: ex,
		maxPixels: maxPixels,
	}
}

// Decode parses data as any registered image format. The header is checked
// before pixel data is allocated.
func (d *Decoder) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, ErrEmptyImage
	}

	if cfg.Width*cfg.Height > d.maxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, d.maxPixels)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, format, err
	}
	defer d.sem.Release(1)

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return img, format, nil
}

// Extract decodes data and extracts its features. Analysis runs under the
// same concurrency limit as decoding.
func (d *Decoder) Extract(ctx context.Context, data []byte) (Features, error) {
	img, _, err := d.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	return d.extractor.Extract(img), nil
}
