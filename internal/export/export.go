// Package export writes JSON snapshots of the task list to a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/tasks"
)

// ContentType is the media type of exported snapshots.
const ContentType = "application/json"

// Snapshot is the document written by Run.
type Snapshot struct {
	ExportedAt int64        `json:"exported_at"`
	Count      int          `json:"count"`
	Tasks      []tasks.Task `json:"tasks"`
}

// Exporter copies every task into one snapshot object per run.
type Exporter struct {
	store  tasks.Store
	blobs  tasks.BlobStore
	clock  tasks.Clock
	prefix string
	logger *zap.Logger
}

// New constructs an Exporter. Objects are written below prefix ("" for the root).
func New(store tasks.Store, blobs tasks.BlobStore, clock tasks.Clock, prefix string, logger *zap.Logger) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		store:  store,
		blobs:  blobs,
		clock:  clock,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("export"),
	}, nil
}

// ObjectPath returns the object path for a snapshot taken at exportedAt (epoch millis).
func (e *Exporter) ObjectPath(exportedAt int64) string {
	name := fmt.Sprintf("tasks-%d.json", exportedAt)
	if e.prefix == "" {
		return name
	}
	return path.Join(e.prefix, name)
}

// Run lists all tasks and writes them as a single snapshot. It returns the object URI.
func (e *Exporter) Run(ctx context.Context) (string, error) {
	list, err := e.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if list == nil {
		list = []tasks.Task{}
	}
	snap := Snapshot{
		ExportedAt: tasks.Millis(e.clock.Now()),
		Count:      len(list),
		Tasks:      list,
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	objectPath := e.ObjectPath(snap.ExportedAt)
	uri, err := e.blobs.PutObject(ctx, objectPath, ContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	e.logger.Info("tasks exported", zap.String("uri", uri), zap.Int("count", snap.Count))
	return uri, nil
}
