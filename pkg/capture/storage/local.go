package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trainloop/capture/pkg/capture"
)

// Local stores blobs as files under a root directory. Appends use O_APPEND so
// event files are extended in place rather than rewritten.
type Local struct {
	root string
}

var _ Backend = (*Local)(nil)

// NewLocal returns a backend rooted at dir. The directory is created on the
// first write.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage: empty local directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, capture.NewStorageError("local", "open", dir, err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) String() string {
	return l.root
}

func (l *Local) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(k)), nil
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, capture.ErrNotExist
	}
	if err != nil {
		return nil, capture.NewStorageError("local", "read", key, err)
	}
	return b, nil
}

// Write replaces the file through a temporary sibling and a rename, so
// readers never observe a half-written document.
func (l *Local) Write(_ context.Context, key string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return capture.NewStorageError("local", "write", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return capture.NewStorageError("local", "write", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return capture.NewStorageError("local", "write", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return capture.NewStorageError("local", "write", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return capture.NewStorageError("local", "write", key, err)
	}
	return nil
}

func (l *Local) Append(_ context.Context, key string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return capture.NewStorageError("local", "append", key, err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return capture.NewStorageError("local", "append", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return capture.NewStorageError("local", "append", key, err)
	}
	if err := f.Close(); err != nil {
		return capture.NewStorageError("local", "append", key, err)
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, capture.NewStorageError("local", "list", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return capture.NewStorageError("local", "delete", key, err)
	}
	return nil
}

func (l *Local) Close() error {
	return nil
}
