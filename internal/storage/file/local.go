package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local provides a file-based storage backend rooted at a directory on the
// local filesystem. It is used for the gallery output folder.
type Local struct {
	basePath string
}

// NewLocal creates a Local storage rooted at basePath.
func NewLocal(basePath string) *Local {
	return &Local{basePath: basePath}
}

// Save stores src as filename in the given subdirectory, creating the
// directory when needed and overwriting existing files. An empty subdir
// stores the file at the root.
func (l *Local) Save(_ context.Context, subdir, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(l.basePath, subdir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dstPath := filepath.Join(dir, filename)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return dstPath, nil
}

// Load opens the file at path relative to the storage root.
func (l *Local) Load(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}
	return f, nil
}

// Walk calls fn with the slash-separated relative path of every regular file
// under the storage root, in lexical order.
func (l *Local) Walk(fn func(rel string) error) error {
	return filepath.WalkDir(l.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}
