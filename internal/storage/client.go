// Package storage keeps uploaded medical documents on the local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidPath = errors.New("invalid storage path")
	ErrTooLarge    = errors.New("file exceeds the upload limit")
)

// FileInfo contains metadata about a stored file.
type FileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	IsDir      bool      `json:"is_dir"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client defines the storage operations used for documents. Paths are
// slash-separated and relative to the storage root.
type Client interface {
	// List returns entries in the specified directory path
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Download opens the contents of a file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Upload writes content to a file path and returns the bytes written
	Upload(ctx context.Context, path string, content io.Reader) (int64, error)

	// Delete removes a file; deleting a missing file is not an error
	Delete(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves file info without opening the content
	GetMetadata(ctx context.Context, path string) (*FileInfo, error)
}

// Local stores files below Root. MaxSize, when positive, caps uploads.
type Local struct {
	Root    string
	MaxSize int64
}

// NewLocal creates the root directory when missing.
func NewLocal(root string, maxSize int64) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{Root: root, MaxSize: maxSize}, nil
}

// DocumentPath is the storage path for a new document of a patient. The
// original extension is kept and the name replaced with a random uuid.
func DocumentPath(patientID uint, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join("patients", fmt.Sprint(patientID), uuid.NewString()+ext)
}

// resolve maps a relative storage path to a file below Root.
func (l *Local) resolve(p string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(p))
	if clean == "/" || strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(l.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (l *Local) List(ctx context.Context, p string) ([]FileInfo, error) {
	dir := l.Root
	if p != "" && p != "/" {
		var err error
		if dir, err = l.resolve(p); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:       e.Name(),
			Path:       path.Join(strings.Trim(filepath.ToSlash(p), "/"), e.Name()),
			IsDir:      e.IsDir(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (l *Local) Download(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Upload writes to a temporary file in the target directory and renames it
// into place, so readers never see a partial document.
func (l *Local) Upload(ctx context.Context, p string, content io.Reader) (int64, error) {
	full, err := l.resolve(p)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	src := content
	if l.MaxSize > 0 {
		src = io.LimitReader(content, l.MaxSize+1)
	}
	n, err := io.Copy(tmp, readerWithContext(ctx, src))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if l.MaxSize > 0 && n > l.MaxSize {
		return 0, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

func (l *Local) Delete(_ context.Context, p string) error {
	full, err := l.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	_, err := l.GetMetadata(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (l *Local) GetMetadata(_ context.Context, p string) (*FileInfo, error) {
	full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Name:       info.Name(),
		Path:       filepath.ToSlash(p),
		IsDir:      info.IsDir(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// ListRecursive lists all files recursively from a path
func ListRecursive(ctx context.Context, client Client, path string) ([]FileInfo, error) {
	var allFiles []FileInfo

	entries, err := client.List(ctx, path)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir {
			subFiles, err := ListRecursive(ctx, client, entry.Path)
			if err != nil {
				return nil, err
			}
			allFiles = append(allFiles, subFiles...)
		} else {
			allFiles = append(allFiles, entry)
		}
	}

	return allFiles, nil
}

// DeleteAll removes every path, continuing past failures. It returns the
// first error seen.
func DeleteAll(ctx context.Context, client Client, paths []string) error {
	var first error
	for _, p := range paths {
		if err := client.Delete(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ Client = (*Local)(nil)
