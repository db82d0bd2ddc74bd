package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/tasklist/internal/logging"
	pubmemory "github.com/JakeFAU/tasklist/internal/publisher/memory"
	"github.com/JakeFAU/tasklist/internal/tasks"
)

func TestPing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	srv, _ := newTestServer(t, store)
	rec := do(srv, http.MethodGet, "/ping", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "I am alive!", rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	require.Zero(t, store.calls(), "ping must not touch the store")
}

func TestIndexListsNewestFirstWithElapsed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed(
		tasks.Task{ID: "a", Title: "first", CreatedAt: 100},
		tasks.Task{ID: "b", Title: "second", CreatedAt: 300},
		tasks.Task{ID: "c", Title: "third", CreatedAt: 200},
	)
	srv, _ := newTestServer(t, store)
	rec := do(srv, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	second := strings.Index(body, "second")
	third := strings.Index(body, "third")
	first := strings.Index(body, "first")
	require.True(t, second >= 0 && third >= 0 && first >= 0, body)
	require.Less(t, second, third)
	require.Less(t, third, first)
	require.Contains(t, body, `action="/delete/b"`)
	require.Contains(t, body, `<span id="duration">7</span>`)
}

func TestIndexEmpty(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newFakeStore())
	rec := do(srv, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No tasks yet.")
}

func TestIndexEscapesTitles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed(tasks.Task{ID: "x", Title: "<script>alert(1)</script>", CreatedAt: 1})
	srv, _ := newTestServer(t, store)
	rec := do(srv, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
	require.Contains(t, rec.Body.String(), "&lt;script&gt;")
}

func TestCreateForm(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newFakeStore())
	rec := do(srv, http.MethodGet, "/create", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `name="title"`)
	require.Contains(t, body, `action="/create"`)
	require.Contains(t, body, `<span id="duration">7</span>`)
}

func TestCreateTaskStoresAndRedirects(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	srv, logs := newTestServer(t, store)
	rec := do(srv, http.MethodPost, "/create", url.Values{"title": {"buy milk"}})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	list := store.snapshot()
	require.Len(t, list, 1)
	require.Equal(t, "buy milk", list[0].Title)
	require.Equal(t, testStart.Add(7*time.Millisecond).UnixMilli(), list[0].CreatedAt)

	entries := logs.FilterMessage("task created").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "buy milk", entries[0].ContextMap()["title"])

	list2 := do(srv, http.MethodGet, "/", nil)
	require.Contains(t, list2.Body.String(), "buy milk")
}

func TestCreateTaskEmptyTitleIsNoop(t *testing.T) {
	t.Parallel()

	for name, form := range map[string]url.Values{
		"empty":   {"title": {""}},
		"missing": {},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			srv, logs := newTestServer(t, store)
			rec := do(srv, http.MethodPost, "/create", form)

			require.Equal(t, http.StatusSeeOther, rec.Code)
			require.Equal(t, "/", rec.Header().Get("Location"))
			require.Empty(t, store.snapshot())
			require.Zero(t, logs.FilterMessage("task created").Len())
		})
	}
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed(tasks.Task{ID: "abc", Title: "t", CreatedAt: 1})
	srv, logs := newTestServer(t, store)
	rec := do(srv, http.MethodPost, "/delete/abc", nil)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.Empty(t, store.snapshot())

	entries := logs.FilterMessage("task deleted").All()
	require.Len(t, entries, 1)
	require.Equal(t, "abc", entries[0].ContextMap()["taskId"])
}

func TestDeleteMissingTaskStillRedirects(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed(tasks.Task{ID: "keep", Title: "t", CreatedAt: 1})
	srv, _ := newTestServer(t, store)
	rec := do(srv, http.MethodPost, "/delete/ghost", nil)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, store.snapshot(), 1)
}

func TestStoreFailuresReturn500(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		form   url.Values
		fail   string
		msg    string
	}{
		{name: "list", method: http.MethodGet, path: "/", fail: "list", msg: "failed to list tasks"},
		{name: "create", method: http.MethodPost, path: "/create", form: url.Values{"title": {"x"}}, fail: "create", msg: "failed to create task"},
		{name: "delete", method: http.MethodPost, path: "/delete/abc", fail: "delete", msg: "failed to delete task"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			store.failOn(tc.fail, errors.New("firestore unavailable"))
			srv, logs := newTestServer(t, store)
			rec := do(srv, tc.method, tc.path, tc.form)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			require.Equal(t, "Internal Server Error", strings.TrimSpace(rec.Body.String()))
			entries := logs.FilterMessage(tc.msg).All()
			require.Len(t, entries, 1)
			require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
			require.Equal(t, "firestore unavailable", entries[0].ContextMap()["error"])
		})
	}
}

func TestStoreFailureLogCarriesTraceFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failOn("list", errors.New("boom"))
	srv, logs := newTestServer(t, store)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xaa, 0xbb, 0xcc, 0xdd, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c},
		SpanID:     trace.SpanID{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	entries := logs.FilterMessage("failed to list tasks").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, sc.TraceID().String(), fields[logging.TraceIDKey])
	require.Equal(t, sc.SpanID().String(), fields[logging.SpanIDKey])
	require.Equal(t, "01", fields[logging.TraceFlagsKey])
}

func TestTaskEventsPublished(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := pubmemory.New()
	srv, _ := newTestServer(t, store, WithPublisher(pub, "task-events"))

	do(srv, http.MethodPost, "/create", url.Values{"title": {"write docs"}})
	created := store.snapshot()[0]
	do(srv, http.MethodPost, "/delete/"+created.ID, nil)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "task-events", msgs[0].Topic)

	ev, ok := msgs[0].Payload.(tasks.Event)
	require.True(t, ok)
	require.Equal(t, tasks.EventCreated, ev.Type)
	require.Equal(t, created.ID, ev.TaskID)
	require.Equal(t, "write docs", ev.Title)
	require.NotZero(t, ev.OccurredAt)

	ev, ok = msgs[1].Payload.(tasks.Event)
	require.True(t, ok)
	require.Equal(t, tasks.EventDeleted, ev.Type)
	require.Equal(t, created.ID, ev.TaskID)
}

func TestPublishFailureDoesNotChangeResponse(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := pubmemory.New()
	pub.FailWith(errors.New("topic not found"))
	srv, logs := newTestServer(t, store, WithPublisher(pub, "task-events"))

	rec := do(srv, http.MethodPost, "/create", url.Values{"title": {"x"}})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, store.snapshot(), 1)
	entries := logs.FilterMessage("failed to publish task event").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newFakeStore())
	do(srv, http.MethodPost, "/create", url.Values{"title": {"x"}})
	rec := do(srv, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tasks_created_total")
}

func TestRoutingErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newFakeStore())
	require.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/nope", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/delete/abc", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodDelete, "/create", nil).Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newFakeStore())
	rec := do(srv, http.MethodGet, "/ping", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestsLoggedAtInfo(t *testing.T) {
	t.Parallel()

	srv, logs := newTestServer(t, newFakeStore())
	do(srv, http.MethodGet, "/", nil)
	do(srv, http.MethodGet, "/ping", nil)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "/", entries[0].ContextMap()["path"])
	require.Equal(t, "/ping", entries[1].ContextMap()["path"])
}

func TestNewServerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewServer(nil, &stepClock{}, zap.NewNop())
	require.Error(t, err)
	_, err = NewServer(newFakeStore(), nil, zap.NewNop())
	require.Error(t, err)
}

// --- helpers/fakes ---

var testStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, store *fakeStore, opts ...Option) (*Server, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	srv, err := NewServer(store, &stepClock{now: testStart, step: 7 * time.Millisecond}, zap.New(core), opts...)
	require.NoError(t, err)
	return srv, logs
}

func do(srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// stepClock advances by step on every call after the first.
type stepClock struct {
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	started bool
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.now = c.now.Add(c.step)
	}
	c.started = true
	return c.now
}

type fakeStore struct {
	mu     sync.Mutex
	tasks  []tasks.Task
	nextID int
	errs   map[string]error
	n      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{errs: map[string]error{}}
}

func (s *fakeStore) seed(list ...tasks.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, list...)
}

func (s *fakeStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[op] = err
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *fakeStore) snapshot() []tasks.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]tasks.Task(nil), s.tasks...)
	tasks.SortNewestFirst(out)
	return out
}

func (s *fakeStore) List(_ context.Context) ([]tasks.Task, error) {
	s.mu.Lock()
	s.n++
	err := s.errs["list"]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

func (s *fakeStore) Create(_ context.Context, title string, createdAt int64) (tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if err := s.errs["create"]; err != nil {
		return tasks.Task{}, err
	}
	s.nextID++
	task := tasks.Task{ID: "task-" + string(rune('a'+s.nextID-1)), Title: title, CreatedAt: createdAt}
	s.tasks = append(s.tasks, task)
	return task, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if err := s.errs["delete"]; err != nil {
		return err
	}
	for i, task := range s.tasks {
		if task.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }
