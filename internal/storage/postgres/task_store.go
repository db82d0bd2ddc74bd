// Package postgres provides a Postgres-backed task store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/tasklist/internal/tasks"
)

const defaultTable = "tasks"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for task rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// TaskStore persists tasks in a single table keyed by id.
type TaskStore struct {
	pool  pool
	table string
	ids   tasks.IDGenerator
}

// NewTaskStore connects to Postgres using cfg. Task ids come from ids.
func NewTaskStore(ctx context.Context, cfg Config, ids tasks.IDGenerator) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewTaskStoreWithPool(p, cfg.Table, ids)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewTaskStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewTaskStoreWithPool(p pool, table string, ids tasks.IDGenerator) (*TaskStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TaskStore{pool: p, table: table, ids: ids}, nil
}

// EnsureSchema creates the task table when it does not exist.
func (s *TaskStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create task table: %w", err)
	}
	return nil
}

// List returns every task ordered by created_at descending.
func (s *TaskStore) List(ctx context.Context) ([]tasks.Task, error) {
	query := fmt.Sprintf(`SELECT id, title, created_at FROM %s ORDER BY created_at DESC`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []tasks.Task{}
	for rows.Next() {
		var task tasks.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

// Create inserts a task row with a freshly generated id.
func (s *TaskStore) Create(ctx context.Context, title string, createdAt int64) (tasks.Task, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return tasks.Task{}, fmt.Errorf("generate task id: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, title, created_at) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, title, createdAt); err != nil {
		return tasks.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return tasks.Task{ID: id, Title: title, CreatedAt: createdAt}, nil
}

// Delete removes the row for id. Zero affected rows is not an error.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
