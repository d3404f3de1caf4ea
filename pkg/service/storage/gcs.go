package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
	"google.golang.org/api/iterator"
)

// GCS stores objects in a Cloud Storage bucket. Path downloads the object into a
// temporary file because the audio tools operate on local files.
type GCS struct {
	client *gcs.Client
	bucket string
	prefix string
	tmpDir string
}

var _ interfaces.Storage = &GCS{}

type GCSOption func(*GCS)

// WithGCSPrefix stores every object under prefix inside the bucket
func WithGCSPrefix(prefix string) GCSOption {
	return func(s *GCS) {
		s.prefix = prefix
	}
}

// WithGCSTempDir sets the directory used for downloaded objects
func WithGCSTempDir(dir string) GCSOption {
	return func(s *GCS) {
		s.tmpDir = dir
	}
}

func NewGCS(ctx context.Context, bucket string, opts ...GCSOption) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("GCS bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GCS client")
	}

	s := &GCS{
		client: client,
		bucket: bucket,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *GCS) Close() error {
	return s.client.Close()
}

func (s *GCS) object(key string) (*gcs.ObjectHandle, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, cleaned)), nil
}

func (s *GCS) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	obj, err := s.object(key)
	if err != nil {
		return 0, err
	}

	w := obj.NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, goerr.Wrap(err, "failed to upload object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to finalize object upload", goerr.V("key", key))
	}

	logging.From(ctx).Debug("object uploaded", "bucket", s.bucket, "key", key, "size", n)
	return n, nil
}

func (s *GCS) Path(ctx context.Context, key string) (string, func(), error) {
	obj, err := s.object(key)
	if err != nil {
		return "", nil, err
	}

	rd, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", nil, goerr.Wrap(model.ErrNotFound, "object not found", goerr.V("key", key))
		}
		return "", nil, goerr.Wrap(err, "failed to open object", goerr.V("key", key))
	}
	defer safe.Close(ctx, rd)

	f, err := os.CreateTemp(s.tmpDir, "meetscribe-*"+path.Ext(key))
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to create temp file")
	}
	defer safe.Close(ctx, f)

	release := func() { safe.Remove(context.Background(), f.Name()) }
	if _, err := io.Copy(f, rd); err != nil {
		release()
		return "", nil, goerr.Wrap(err, "failed to download object", goerr.V("key", key))
	}

	return f.Name(), release, nil
}

func (s *GCS) Delete(ctx context.Context, key string) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return goerr.Wrap(err, "failed to delete object", goerr.V("key", key))
	}
	return nil
}

func (s *GCS) List(ctx context.Context, prefix string) ([]*interfaces.StoredObject, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: full})

	var objects []*interfaces.StoredObject
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
		}

		key := attrs.Name
		if s.prefix != "" {
			if len(key) <= len(s.prefix)+1 {
				continue
			}
			key = key[len(s.prefix)+1:]
		}
		objects = append(objects, &interfaces.StoredObject{
			Key:       key,
			Size:      attrs.Size,
			UpdatedAt: attrs.Updated,
		})
	}
	return objects, nil
}
