package storage

import (
	"context"
	"github.com/pkg/errors"
	"io"
	"nexdb/internal/types"
	"os"
	"path/filepath"
	"strings"
)

// fileStorage stores objects below root, mirroring an object key layout on disk
type fileStorage struct {
	root string
}

func NewFileStorage(root string) Storage {
	return &fileStorage{root: root}
}

func (f fileStorage) Save(_ context.Context, location string, file types.File) error {
	path, err := f.resolve(location)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	fi, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		_ = fi.Close()
	}()

	if _, err := io.Copy(fi, file.Content); err != nil {
		return err
	}
	return fi.Sync()
}

func (f fileStorage) Get(_ context.Context, location string) (*types.File, error) {
	path, err := f.resolve(location)
	if err != nil {
		return nil, err
	}
	return types.OpenFile(path)
}

func (f fileStorage) Ping(_ context.Context) error {
	stat, err := os.Stat(f.root)
	if err != nil {
		return err
	}

	if !stat.IsDir() {
		return errors.Errorf("%s is not a directory", f.root)
	}
	return nil
}

func (f fileStorage) resolve(location string) (string, error) {
	path := filepath.Join(f.root, filepath.FromSlash(location))
	if path != f.root && !strings.HasPrefix(path, f.root+string(filepath.Separator)) {
		return "", errors.Errorf("location %q escapes storage root", location)
	}
	return path, nil
}
