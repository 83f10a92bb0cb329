package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidName is returned by Remove for names that would escape the upload directory.
var ErrInvalidName = errors.New("invalid upload name")

// DiskStore writes uploads into a single public directory.
// Names are <unix-millis><original-extension>; the millisecond counter never
// repeats or goes backwards within a process.
type DiskStore struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewDiskStore creates the upload directory if needed.
// PRE: dir is writable
// POST: returns a store writing under dir
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

// Dir returns the directory uploads are written to.
func (d *DiskStore) Dir() string {
	return d.dir
}

// nextStamp returns a millisecond timestamp strictly greater than the previous one.
func (d *DiskStore) nextStamp() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ms := d.now().UnixMilli()
	if ms <= d.last {
		ms = d.last + 1
	}
	d.last = ms
	return ms
}

// Save copies src to a new file and returns its name.
// The extension of originalName is kept as-is; no type or size checks are made.
// PRE: src is readable
// POST: file <dir>/<name> exists with src's content
func (d *DiskStore) Save(ctx context.Context, originalName string, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := strconv.FormatInt(d.nextStamp(), 10) + filepath.Ext(filepath.Base(originalName))
	fullPath := filepath.Join(d.dir, name)

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("close: %w", err)
	}
	slog.Info("upload_event", "event", "saved", "name", name, "original", originalName)
	return name, nil
}

// Remove deletes a previously saved upload. A missing file is not an error.
// PRE: name was returned by Save
// POST: file no longer exists
func (d *DiskStore) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
