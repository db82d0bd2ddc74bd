package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/logging"
	"github.com/JakeFAU/tasklist/internal/metrics"
	"github.com/JakeFAU/tasklist/internal/middleware"
	"github.com/JakeFAU/tasklist/internal/tasks"
	"github.com/JakeFAU/tasklist/internal/telemetry"
)

const (
	pingBody      = "I am alive!"
	internalError = "Internal Server Error"
)

// Server wires HTTP handlers to the task store.
type Server struct {
	router    chi.Router
	store     tasks.Store
	clock     tasks.Clock
	logger    *zap.Logger
	views     *template.Template
	publisher tasks.Publisher
	topic     string
	tracing   *telemetry.Instrumentations
	operation string
}

// Option customizes a Server.
type Option func(*Server)

// WithPublisher publishes task events to topic after each successful mutation.
func WithPublisher(pub tasks.Publisher, topic string) Option {
	return func(s *Server) {
		s.publisher = pub
		s.topic = topic
	}
}

// WithInstrumentations wraps every route in a server span named operation.
func WithInstrumentations(instr telemetry.Instrumentations, operation string) Option {
	return func(s *Server) {
		s.tracing = &instr
		s.operation = operation
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store tasks.Store, clock tasks.Clock, logger *zap.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	views, err := parseViews()
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:  store,
		clock:  clock,
		logger: logger.Named("api"),
		views:  views,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.Init()

	r := chi.NewRouter()
	r.Use(middleware.RequestStart(clock.Now))
	if s.tracing != nil {
		r.Use(s.tracing.HTTPMiddleware(s.operation))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recoverer(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/ping", s.ping)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/", s.index)
	r.Get("/create", s.createForm)
	r.Post("/create", s.createTask)
	r.Post("/delete/{id}", s.deleteTask)

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(pingBody)); err != nil {
		s.log(r.Context()).Debug("write ping failed", zap.Error(err))
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		metrics.ObserveStoreError("list")
		s.fail(w, r, "failed to list tasks", err)
		return
	}
	s.render(w, r, viewIndex, indexPage{
		Tasks:    toTaskViews(list),
		Duration: s.elapsed(r),
	})
}

func (s *Server) createForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, viewCreate, createPage{Duration: s.elapsed(r)})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	title := r.PostFormValue("title")
	if title == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	task, err := s.store.Create(r.Context(), title, tasks.Millis(s.clock.Now()))
	if err != nil {
		metrics.ObserveStoreError("create")
		s.fail(w, r, "failed to create task", err)
		return
	}
	metrics.ObserveTaskCreated()
	s.log(r.Context()).Info("task created", zap.String("title", title))
	s.publish(r.Context(), tasks.Event{
		Type:      tasks.EventCreated,
		TaskID:    task.ID,
		Title:     task.Title,
		CreatedAt: task.CreatedAt,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		metrics.ObserveStoreError("delete")
		s.fail(w, r, "failed to delete task", err)
		return
	}
	metrics.ObserveTaskDeleted()
	s.log(r.Context()).Info("task deleted", zap.String("taskId", id))
	s.publish(r.Context(), tasks.Event{Type: tasks.EventDeleted, TaskID: id})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// publish sends a task event. Failures are logged and never reach the client.
func (s *Server) publish(ctx context.Context, ev tasks.Event) {
	if s.publisher == nil {
		return
	}
	ev.OccurredAt = tasks.Millis(s.clock.Now())
	_, err := s.publisher.Publish(ctx, s.topic, ev)
	metrics.ObserveEventPublish(string(ev.Type), err)
	if err != nil {
		s.log(ctx).Warn("failed to publish task event",
			zap.String("type", string(ev.Type)),
			zap.String("taskId", ev.TaskID),
			zap.Error(err),
		)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log(r.Context()).Error(msg, zap.Error(err))
	http.Error(w, internalError, http.StatusInternalServerError)
}

func (s *Server) elapsed(r *http.Request) int64 {
	return middleware.Elapsed(r.Context(), s.clock.Now())
}

func (s *Server) log(ctx context.Context) *zap.Logger {
	return logging.Ctx(ctx, s.logger)
}
