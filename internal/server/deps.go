package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/tasklist/internal/config"
	"github.com/JakeFAU/tasklist/internal/id/uuid"
	gcppublisher "github.com/JakeFAU/tasklist/internal/publisher/pubsub"
	fsstore "github.com/JakeFAU/tasklist/internal/storage/firestore"
	gcsstorage "github.com/JakeFAU/tasklist/internal/storage/gcs"
	localstorage "github.com/JakeFAU/tasklist/internal/storage/local"
	memorystorage "github.com/JakeFAU/tasklist/internal/storage/memory"
	pgstore "github.com/JakeFAU/tasklist/internal/storage/postgres"
	"github.com/JakeFAU/tasklist/internal/tasks"
)

// OpenStore builds the task store selected by store.backend. grpcOpts are applied to
// Google gRPC clients.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger, grpcOpts []option.ClientOption) (tasks.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		store, err := fsstore.New(ctx, fsstore.Config{
			ProjectID:  cfg.Application.ProjectID,
			DatabaseID: cfg.Firestore.DatabaseID,
			Collection: cfg.Firestore.Collection,
		}, logger, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("firestore store init failed: %w", err)
		}
		logger.Info("using Firestore task store",
			zap.String("database_id", cfg.Firestore.DatabaseID),
			zap.String("collection", cfg.Firestore.Collection),
		)
		return store, nil
	case config.BackendPostgres:
		store, err := pgstore.NewTaskStore(ctx, pgstore.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		}, uuid.New())
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		logger.Info("using Postgres task store", zap.String("table", cfg.Postgres.Table))
		return store, nil
	case config.BackendMemory:
		logger.Warn("using in-memory task store, tasks are lost on restart")
		return memorystorage.NewTaskStore(uuid.New()), nil
	default:
		return nil, fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}
}

// OpenPublisher returns the Pub/Sub publisher for task events, or nil when no topic is
// configured.
func OpenPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger, grpcOpts []option.ClientOption) (*gcppublisher.Publisher, error) {
	if !cfg.PubSubEnabled() {
		logger.Info("no Pub/Sub topic configured, task events disabled")
		return nil, nil
	}
	pub, err := gcppublisher.New(ctx, gcppublisher.Config{
		ProjectID: cfg.PubSub.ProjectID,
		TopicName: cfg.PubSub.TopicName,
	}, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pub, nil
}

// OpenBlobStore returns the export destination: GCS when export.gcs_bucket is set,
// otherwise export.local_dir. The returned close function is never nil.
func OpenBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger, opts []option.ClientOption) (tasks.BlobStore, func() error, error) {
	switch {
	case cfg.Export.GCSBucket != "":
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.Export.GCSBucket}, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		logger.Debug("GCS export destination", zap.String("bucket", cfg.Export.GCSBucket))
		return store, store.Close, nil
	case cfg.Export.LocalDir != "":
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Export.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		logger.Debug("local export destination", zap.String("path", cfg.Export.LocalDir))
		return store, func() error { return nil }, nil
	default:
		return nil, nil, errors.New("export destination not configured: set export.gcs_bucket or export.local_dir")
	}
}
