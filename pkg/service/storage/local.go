package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
)

// Local stores objects as files under a root directory
type Local struct {
	root string
}

var _ interfaces.Storage = &Local{}

// NewLocal creates the root directory if needed
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage root", goerr.V("root", root))
	}
	return &Local{root: root}, nil
}

func (s *Local) filePath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.filePath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, goerr.Wrap(err, "failed to create object directory", goerr.V("key", key))
	}

	f, err := os.Create(p) // #nosec G304 key is normalized by cleanKey
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create object file", goerr.V("key", key))
	}
	defer safe.Close(ctx, f)

	n, err := io.Copy(f, r)
	if err != nil {
		safe.Remove(ctx, p)
		return 0, goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	return n, nil
}

func (s *Local) Path(ctx context.Context, key string) (string, func(), error) {
	p, err := s.filePath(key)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, goerr.Wrap(model.ErrNotFound, "object not found", goerr.V("key", key))
		}
		return "", nil, goerr.Wrap(err, "failed to stat object", goerr.V("key", key))
	}
	return p, func() {}, nil
}

func (s *Local) Delete(ctx context.Context, key string) error {
	p, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to delete object", goerr.V("key", key))
	}
	return nil
}

func (s *Local) List(ctx context.Context, prefix string) ([]*interfaces.StoredObject, error) {
	var objects []*interfaces.StoredObject
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, &interfaces.StoredObject{
			Key:       key,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
	}
	return objects, nil
}
