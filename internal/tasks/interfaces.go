package tasks

import (
	"context"
	"io"
	"time"
)

// Store persists tasks. Implementations assign IDs on Create.
type Store interface {
	// List returns every task ordered by CreatedAt descending.
	List(ctx context.Context) ([]Task, error)
	Create(ctx context.Context, title string, createdAt int64) (Task, error)
	// Delete removes the task with id. A missing id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Publisher pushes task events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes export snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs for stores that do not assign their own.
type IDGenerator interface {
	NewID() (string, error)
}
