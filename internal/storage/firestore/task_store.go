// Package firestore stores tasks as documents in a Cloud Firestore collection.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/JakeFAU/tasklist/internal/logging"
	"github.com/JakeFAU/tasklist/internal/tasks"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultDatabaseID = "(default)"
	DefaultCollection = "tasks"
)

const (
	fieldTitle     = "title"
	fieldCreatedAt = "created_at"
)

// Config selects the Firestore database and collection.
type Config struct {
	// ProjectID falls back to credential detection when empty.
	ProjectID  string
	DatabaseID string
	Collection string
}

type document struct {
	Title     string `firestore:"title"`
	CreatedAt int64  `firestore:"created_at"`
}

// TaskStore implements tasks.Store on top of a Firestore collection. The document id
// is the task id.
type TaskStore struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

// New dials Firestore. opts typically carries the gRPC tracing instrumentation.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*TaskStore, error) {
	project := cfg.ProjectID
	if project == "" {
		project = firestore.DetectProjectID
	}
	database := cfg.DatabaseID
	if database == "" {
		database = DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, project, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return NewWithClient(client, cfg.Collection, logger), nil
}

// NewWithClient wraps an existing client. The store owns client and closes it on Close.
func NewWithClient(client *firestore.Client, collection string, logger *zap.Logger) *TaskStore {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskStore{
		client:     client,
		collection: collection,
		logger:     logger.Named("firestore"),
	}
}

// List returns every task ordered by created_at descending. Documents that do not
// decode are skipped.
func (s *TaskStore) List(ctx context.Context) ([]tasks.Task, error) {
	iter := s.client.Collection(s.collection).OrderBy(fieldCreatedAt, firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := []tasks.Task{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		task, err := decode(snap.Ref.ID, snap.Data())
		if err != nil {
			fields := append([]zap.Field{zap.String("taskId", snap.Ref.ID), zap.Error(err)}, logging.TraceFields(ctx)...)
			s.logger.Warn("skipping undecodable task document", fields...)
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// Create adds a document with an auto-generated id.
func (s *TaskStore) Create(ctx context.Context, title string, createdAt int64) (tasks.Task, error) {
	ref, _, err := s.client.Collection(s.collection).Add(ctx, document{Title: title, CreatedAt: createdAt})
	if err != nil {
		return tasks.Task{}, fmt.Errorf("add task: %w", err)
	}
	return tasks.Task{ID: ref.ID, Title: title, CreatedAt: createdAt}, nil
}

// Delete removes the document for id. Firestore treats a missing document as deleted,
// and ids that cannot name a document are ignored the same way.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if !validDocID(id) {
		return nil
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Close releases the Firestore client.
func (s *TaskStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close firestore client: %w", err)
	}
	return nil
}

func validDocID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.Contains(id, "/")
}

func decode(id string, data map[string]any) (tasks.Task, error) {
	title, ok := data[fieldTitle].(string)
	if !ok || title == "" {
		return tasks.Task{}, fmt.Errorf("field %q missing or not a string", fieldTitle)
	}
	var createdAt int64
	switch v := data[fieldCreatedAt].(type) {
	case int64:
		createdAt = v
	case float64:
		createdAt = int64(v)
	default:
		return tasks.Task{}, fmt.Errorf("field %q missing or not a number", fieldCreatedAt)
	}
	return tasks.Task{ID: id, Title: title, CreatedAt: createdAt}, nil
}
