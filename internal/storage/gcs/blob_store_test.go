package gcs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "storage client is required")

	_, err = Open(context.Background(), Config{})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	fake := &fakeGCS{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.Listener.Addr().String())

	store, err := Open(context.Background(), Config{Bucket: "task-exports"}, option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	payload := `{"count":1,"tasks":[{"id":"a","title":"buy milk","created_at":1}]}`
	uri, err := store.PutObject(context.Background(), "exports/tasks-1.json", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	require.Equal(t, "gs://task-exports/exports/tasks-1.json", uri)

	path, body := fake.last()
	require.Contains(t, path, "/b/task-exports/o")
	require.Contains(t, body, payload)
	require.Contains(t, body, "application/json")
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store := &BlobStore{bucket: "b"}
	_, err := store.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")
}

type fakeGCS struct {
	mu   sync.Mutex
	path string
	body string
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.path = r.URL.Path
	f.body = string(data)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"bucket":"task-exports","name":"exports/tasks-1.json","size":"1"}`))
}

func (f *fakeGCS) last() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path, f.body
}
