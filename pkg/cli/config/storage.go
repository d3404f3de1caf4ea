package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/service/storage"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Storage holds flags of the audio object store
type Storage struct {
	backend   string
	localRoot string
	bucket    string
	prefix    string
}

func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Audio storage backend (local or gcs)",
			Category:    "Storage",
			Value:       "local",
			Sources:     cli.EnvVars("MEETSCRIBE_STORAGE_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "storage-local-root",
			Usage:       "Directory of the local storage backend",
			Category:    "Storage",
			Value:       "./data/audio",
			Sources:     cli.EnvVars("MEETSCRIBE_STORAGE_LOCAL_ROOT"),
			Destination: &s.localRoot,
		},
		&cli.StringFlag{
			Name:        "storage-gcs-bucket",
			Usage:       "Cloud Storage bucket (required when using gcs backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MEETSCRIBE_STORAGE_GCS_BUCKET"),
			Destination: &s.bucket,
		},
		&cli.StringFlag{
			Name:        "storage-gcs-prefix",
			Usage:       "Object name prefix inside the bucket",
			Category:    "Storage",
			Sources:     cli.EnvVars("MEETSCRIBE_STORAGE_GCS_PREFIX"),
			Destination: &s.prefix,
		},
	}
}

// Configure returns the storage and a closer releasing its client
func (s *Storage) Configure(ctx context.Context) (interfaces.Storage, func(), error) {
	switch s.backend {
	case "", "local":
		local, err := storage.NewLocal(s.localRoot)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize local storage")
		}
		logging.Default().Info("Using local audio storage", "root", s.localRoot)
		return local, func() {}, nil

	case "gcs":
		if s.bucket == "" {
			return nil, nil, goerr.Wrap(ErrMissingArgument, "storage-gcs-bucket is required when using gcs backend")
		}
		var opts []storage.GCSOption
		if s.prefix != "" {
			opts = append(opts, storage.WithGCSPrefix(s.prefix))
		}
		client, err := storage.NewGCS(ctx, s.bucket, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize GCS storage")
		}
		logging.Default().Info("Using Cloud Storage for audio", "bucket", s.bucket, "prefix", s.prefix)
		return client, func() {
			if err := client.Close(); err != nil {
				logging.Default().Error("failed to close GCS client", "error", err.Error())
			}
		}, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidBackend, "invalid storage backend", goerr.V(BackendKey, s.backend))
	}
}
