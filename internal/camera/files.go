// Package camera provides capture sources for headless sessions.
package camera

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hpungsan/medscan/internal/drug"
)

// MaxImageBytes is the largest file Files will read.
const MaxImageBytes = 20 * 1024 * 1024

// Files "captures" by reading image files. Every Capture shoots the current
// file, so a flash retry re-shoots the same label; Next moves on to the
// following file when the user takes a new photo.
type Files struct {
	mu      sync.Mutex
	paths   []string
	cur     int
	flashes []bool
}

// NewFiles returns a camera over paths. At least one path is required.
func NewFiles(paths ...string) (*Files, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one image path is required")
	}
	return &Files{paths: append([]string(nil), paths...)}, nil
}

// Capture reads the current file. The flash request is recorded only.
func (f *Files) Capture(ctx context.Context, flash bool) (drug.Image, error) {
	if err := ctx.Err(); err != nil {
		return drug.Image{}, err
	}

	f.mu.Lock()
	path := f.paths[f.cur]
	f.flashes = append(f.flashes, flash)
	f.mu.Unlock()

	return ReadImage(path)
}

// Next moves to the following file. It reports false, staying put, when
// the current file is the last.
func (f *Files) Next() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur >= len(f.paths)-1 {
		return false
	}
	f.cur++
	return true
}

// Remaining reports how many files come after the current one.
func (f *Files) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths) - 1 - f.cur
}

// Flashes returns the flash flag of every capture so far.
func (f *Files) Flashes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.flashes...)
}

// ReadImage loads one image file and sniffs its content type.
func ReadImage(path string) (drug.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return drug.Image{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return drug.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxImageBytes {
		return drug.Image{}, fmt.Errorf("%s exceeds %d bytes", path, MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return drug.Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return drug.Image{}, fmt.Errorf("%s is empty", path)
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return drug.Image{}, fmt.Errorf("%s is not an image (%s)", path, ct)
	}
	return drug.Image{
		Filename:    filepath.Base(path),
		ContentType: ct,
		Data:        data,
	}, nil
}
