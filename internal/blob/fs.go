package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FsStore keeps uploaded bytes under a local directory. Used in dev and
// tests, where a minio deployment would be overkill.
type FsStore struct {
	rootDir string
}

var _ Store = (*FsStore)(nil)

func NewFsStore(rootDir string) (*FsStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, err
	}
	return &FsStore{rootDir: rootDir}, nil
}

// PathFor returns the full path for the provided key.
func (s *FsStore) PathFor(key string) string {
	// keys are opaque; strip separators so they cannot escape the root
	return filepath.Join(s.rootDir, strings.ReplaceAll(key, string(os.PathSeparator), "_"))
}

func (s *FsStore) Put(_ context.Context, key string, data []byte) error {
	return os.WriteFile(s.PathFor(key), data, 0o644)
}

func (s *FsStore) Get(_ context.Context, key string, dst io.Writer) error {
	f, err := os.Open(s.PathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}

func (s *FsStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.PathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
