package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps reports under a local directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(object string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(object))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object %q escapes report directory", object)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *FileStore) Put(_ context.Context, object string, r io.Reader, _ int64) error {
	p, err := s.path(object)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".report-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FileStore) Open(_ context.Context, object string) (io.ReadCloser, error) {
	p, err := s.path(object)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
