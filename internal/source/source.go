// Package source gathers the code string from a local file, the system
// clipboard or a remote URL.
package source

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

var (
	// ErrNotPlainText rejects files whose declared type is not text/plain.
	ErrNotPlainText = errors.New("please select a valid .txt file")
	// ErrClipboard covers a missing clipboard utility or denied access.
	ErrClipboard = errors.New("could not read the clipboard; check clipboard access")
	// ErrFetch covers every failure loading a remote file.
	ErrFetch = errors.New("could not load from GitHub; check the URL")
)

// maxFileSize caps files read from disk.
const maxFileSize = 10 << 20 // 10 MB

// Fetcher performs the GET behind FromURL.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// Loader reads code from the three supported sources.
type Loader struct {
	fetcher       Fetcher
	readClipboard func() (string, error)
}

// NewLoader returns a Loader that fetches remote files with f and reads the
// system clipboard.
func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f, readClipboard: clipboard.ReadAll}
}

func init() {
	// Not every platform ships a mime.types entry for .txt.
	mime.AddExtensionType(".txt", "text/plain; charset=utf-8") //nolint:errcheck // static, well-formed
}

// DeclaredType returns the media type implied by the file extension, without
// parameters. Files without a known extension have no declared type.
func DeclaredType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}

// FromFile reads a plain-text file. Any other declared type is rejected
// before the file is opened.
func (l *Loader) FromFile(path string) (string, error) {
	if DeclaredType(path) != "text/plain" {
		return "", fmt.Errorf("source.FromFile %s: %w", filepath.Base(path), ErrNotPlainText)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("source.FromFile: %w", err)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("source.FromFile: %s is larger than %d bytes", filepath.Base(path), maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("source.FromFile: %w", err)
	}
	return string(data), nil
}

// FromClipboard returns the clipboard text.
func (l *Loader) FromClipboard() (string, error) {
	read := l.readClipboard
	if read == nil {
		read = clipboard.ReadAll
	}
	text, err := read()
	if err != nil {
		return "", fmt.Errorf("source.FromClipboard: %v: %w", err, ErrClipboard)
	}
	return text, nil
}

// FromURL loads a hosted source file. GitHub "blob" page URLs are rewritten to
// their raw-content form first.
func (l *Loader) FromURL(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("source.FromURL: empty url: %w", ErrFetch)
	}
	text, err := l.fetcher.FetchText(ctx, RawURL(rawURL))
	if err != nil {
		return "", fmt.Errorf("source.FromURL: %v: %w", err, ErrFetch)
	}
	return text, nil
}

// RawURL maps a GitHub file page to its raw content URL by replacing the
// first "github.com" with "raw.githubusercontent.com" and the first "/blob/"
// with "/". Every other part of the URL is kept.
func RawURL(u string) string {
	u = strings.Replace(u, "github.com", "raw.githubusercontent.com", 1)
	return strings.Replace(u, "/blob/", "/", 1)
}
