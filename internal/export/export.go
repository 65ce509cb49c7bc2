// Package export writes a generated diagram to disk as SVG or PNG.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/naveenspark/diagrama/pkg/domain"
)

var (
	// ErrNoResult means there is nothing displayed to export.
	ErrNoResult = errors.New("no diagram to export")
	// ErrVectorUnavailable means the diagram has no SVG markup.
	ErrVectorUnavailable = errors.New("the diagram has no vector version")
	// ErrDecodeTimeout means the image did not finish decoding in time.
	ErrDecodeTimeout = errors.New("image took too long to decode")
	// ErrEmptyImage means the image has no drawable area.
	ErrEmptyImage = errors.New("image has zero size")
	// ErrImageTooLarge means the image exceeds the rasterization limits.
	ErrImageTooLarge = errors.New("image is too large to rasterize")
)

// Rasterization limits, per side and in total pixels.
const (
	MaxSide   = 16384
	MaxPixels = 64 << 20
)

// DefaultDecodeTimeout bounds rasterization when no timeout is configured.
const DefaultDecodeTimeout = 10 * time.Second

// Fetcher loads the content behind a result URL.
type Fetcher interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Exporter fetches a result and writes it under dir.
type Exporter struct {
	fetcher       Fetcher
	dir           string
	decodeTimeout time.Duration
	decode        func(data []byte, mediaType string) (image.Image, error)
	logger        *slog.Logger
}

// New returns an Exporter writing into dir.
func New(f Fetcher, dir string, decodeTimeout time.Duration, logger *slog.Logger) *Exporter {
	if decodeTimeout <= 0 {
		decodeTimeout = DefaultDecodeTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{fetcher: f, dir: dir, decodeTimeout: decodeTimeout, decode: Decode, logger: logger}
}

// Export writes res in format to dir/diagram.<format> and returns the path.
func (e *Exporter) Export(ctx context.Context, res *domain.DiagramResult, format domain.ExportFormat) (string, error) {
	if res == nil || res.URL == "" {
		return "", ErrNoResult
	}
	data, mediaType, err := e.fetcher.FetchBytes(ctx, res.URL)
	if err != nil {
		return "", fmt.Errorf("export.Export: %w", err)
	}

	var out []byte
	switch format {
	case domain.ExportSVG:
		if !IsSVG(data, mediaType) {
			return "", ErrVectorUnavailable
		}
		out = data
	case domain.ExportPNG:
		out, err = e.toPNG(ctx, data, mediaType)
		if err != nil {
			return "", fmt.Errorf("export.Export: %w", err)
		}
	default:
		return "", fmt.Errorf("export.Export: unknown format %q", format)
	}

	path := filepath.Join(e.dir, format.FileName())
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("export.Export: create dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("export.Export: %w", err)
	}
	e.logger.Info("diagram exported", "format", format, "path", path, "bytes", len(out))
	return path, nil
}

// IsSVG reports whether data is SVG markup, by declared media type or by an
// <svg element near the start of the document.
func IsSVG(data []byte, mediaType string) bool {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil && mt == "image/svg+xml" {
		return true
	}
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func (e *Exporter) toPNG(ctx context.Context, data []byte, mediaType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.decodeTimeout)
	defer cancel()

	type decoded struct {
		img image.Image
		err error
	}
	ch := make(chan decoded, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- decoded{err: fmt.Errorf("decoder panic: %v", r)}
			}
		}()
		img, err := e.decode(data, mediaType)
		ch <- decoded{img: img, err: err}
	}()

	var img image.Image
	select {
	case d := <-ch:
		if d.err != nil {
			return nil, fmt.Errorf("decode image: %w", d.err)
		}
		img = d.img
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDecodeTimeout, ctx.Err())
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode turns fetched diagram content into an image. SVG is rasterized;
// PNG, JPEG and GIF are decoded directly.
func Decode(data []byte, mediaType string) (image.Image, error) {
	if IsSVG(data, mediaType) {
		return Rasterize(data)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// Rasterize draws SVG markup onto an RGBA canvas sized to the document's
// natural dimensions.
func Rasterize(svg []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if !(vw >= 1 && vh >= 1) {
		return nil, ErrEmptyImage
	}
	if vw > MaxSide || vh > MaxSide || vw*vh > MaxPixels {
		return nil, fmt.Errorf("%w: %.0fx%.0f", ErrImageTooLarge, vw, vh)
	}
	w, h := int(vw), int(vh)
	icon.SetTarget(0, 0, float64(w), float64(h))
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return canvas, nil
}
