package textures

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/yggkeeper/internal/filex"
)

// FSStore keeps one "<hash>.png" file per blob in a directory. Writes go to
// a temp file first and are published with a hard link, which fails if the
// name already exists, so readers never see partial files and two writers
// cannot both win.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filex.EnsureDir(dir, 0o755)
	if err != nil {
		return nil, err
	}
	return &FSStore{dir: abs}, nil
}

func (s *FSStore) path(hash string) string {
	return filepath.Join(s.dir, hash+".png")
}

func (s *FSStore) Exists(_ context.Context, hash string) (bool, error) {
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FSStore) Put(_ context.Context, hash string, data []byte) (bool, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	if err := os.Link(tmpName, s.path(hash)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FSStore) Get(_ context.Context, hash string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.path(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}
