package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/naveenspark/diagrama/pkg/domain"
)

const testSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">
  <rect x="0" y="0" width="40" height="20" fill="#ff0000"/>
</svg>`

type fakeFetcher struct {
	data      []byte
	mediaType string
	err       error
}

func (f fakeFetcher) FetchBytes(context.Context, string) ([]byte, string, error) {
	return f.data, f.mediaType, f.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func result() *domain.DiagramResult {
	return &domain.DiagramResult{URL: "https://x/d.svg", Type: domain.DiagramFlowchart}
}

func TestExportSVG(t *testing.T) {
	dir := t.TempDir()
	e := New(fakeFetcher{data: []byte(testSVG), mediaType: "image/svg+xml"}, dir, 0, nil)

	path, err := e.Export(context.Background(), result(), domain.ExportSVG)
	if err != nil {
		t.Fatalf("Export(svg) error: %v", err)
	}
	if path != filepath.Join(dir, "diagram.svg") {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != testSVG {
		t.Error("svg export must write the markup verbatim")
	}
}

func TestExportSVG_RasterSource(t *testing.T) {
	e := New(fakeFetcher{data: testPNG(t, 4, 4), mediaType: "image/png"}, t.TempDir(), 0, nil)
	if _, err := e.Export(context.Background(), result(), domain.ExportSVG); !errors.Is(err, ErrVectorUnavailable) {
		t.Errorf("Export(svg) of png error = %v, want ErrVectorUnavailable", err)
	}
}

func TestExportPNG_FromSVG(t *testing.T) {
	// No declared media type: the <svg marker is enough.
	e := New(fakeFetcher{data: []byte(testSVG)}, t.TempDir(), time.Second, nil)
	path, err := e.Export(context.Background(), result(), domain.ExportPNG)
	if err != nil {
		t.Fatalf("Export(png) error: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("size = %dx%d, want 40x20", b.Dx(), b.Dy())
	}
	r, _, _, a := img.At(20, 10).RGBA()
	if r>>8 < 200 || a>>8 < 200 {
		t.Errorf("center pixel not red: r=%d a=%d", r>>8, a>>8)
	}
}

func TestExportPNG_FromPNG(t *testing.T) {
	e := New(fakeFetcher{data: testPNG(t, 7, 3), mediaType: "image/png"}, t.TempDir(), 0, nil)
	path, err := e.Export(context.Background(), result(), domain.ExportPNG)
	if err != nil {
		t.Fatalf("Export(png) error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 7 || cfg.Height != 3 {
		t.Errorf("size = %dx%d, want 7x3", cfg.Width, cfg.Height)
	}
}

func TestExportPNG_DecodeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	e := New(fakeFetcher{data: []byte("x")}, t.TempDir(), 20*time.Millisecond, nil)
	e.decode = func([]byte, string) (image.Image, error) {
		<-block
		return nil, errors.New("unreachable")
	}
	_, err := e.Export(context.Background(), result(), domain.ExportPNG)
	if !errors.Is(err, ErrDecodeTimeout) {
		t.Fatalf("error = %v, want ErrDecodeTimeout", err)
	}
}

func TestExportPNG_TooLarge(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		mediaType string
	}{
		{"huge svg viewBox", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 3000000000 3000000000"></svg>`), "image/svg+xml"},
		{"svg over pixel budget", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16000 16000"></svg>`), "image/svg+xml"},
		{"wide png", testPNG(t, MaxSide+1, 1), "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			e := New(fakeFetcher{data: tt.data, mediaType: tt.mediaType}, dir, time.Second, nil)
			_, err := e.Export(context.Background(), result(), domain.ExportPNG)
			if !errors.Is(err, ErrImageTooLarge) {
				t.Fatalf("error = %v, want ErrImageTooLarge", err)
			}
			if _, statErr := os.Stat(filepath.Join(dir, domain.ExportPNG.FileName())); !errors.Is(statErr, os.ErrNotExist) {
				t.Errorf("png written despite error: %v", statErr)
			}
		})
	}
}

func TestExportPNG_DecoderPanic(t *testing.T) {
	e := New(fakeFetcher{data: []byte("x")}, t.TempDir(), time.Second, nil)
	e.decode = func([]byte, string) (image.Image, error) {
		panic("boom")
	}
	_, err := e.Export(context.Background(), result(), domain.ExportPNG)
	if err == nil {
		t.Fatal("expected error from panicking decoder")
	}
}

func TestExportPNG_Garbage(t *testing.T) {
	e := New(fakeFetcher{data: []byte("definitely not an image")}, t.TempDir(), 0, nil)
	if _, err := e.Export(context.Background(), result(), domain.ExportPNG); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExport_NoResult(t *testing.T) {
	e := New(fakeFetcher{}, t.TempDir(), 0, nil)
	if _, err := e.Export(context.Background(), nil, domain.ExportPNG); !errors.Is(err, ErrNoResult) {
		t.Errorf("error = %v, want ErrNoResult", err)
	}
}

func TestExport_FetchError(t *testing.T) {
	e := New(fakeFetcher{err: errors.New("HTTP 404")}, t.TempDir(), 0, nil)
	if _, err := e.Export(context.Background(), result(), domain.ExportSVG); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestIsSVG(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		mediaType string
		want      bool
	}{
		{"declared", "", "image/svg+xml; charset=utf-8", true},
		{"sniffed", "<?xml version=\"1.0\"?><svg></svg>", "application/octet-stream", true},
		{"png", "\x89PNG\r\n", "image/png", false},
		{"html", "<html></html>", "text/html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSVG([]byte(tt.data), tt.mediaType); got != tt.want {
				t.Errorf("IsSVG() = %v, want %v", got, tt.want)
			}
		})
	}
}
