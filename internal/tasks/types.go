// Package tasks defines the task entity and the contracts shared across subsystems.
package tasks

import (
	"sort"
	"time"
)

// Task is a persisted to-do item. Title and CreatedAt never change after creation.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
}

// Created returns CreatedAt as a UTC time.
func (t Task) Created() time.Time {
	return time.UnixMilli(t.CreatedAt).UTC()
}

// EventType names a task lifecycle notification.
type EventType string

// Event types published after a successful mutation.
const (
	EventCreated EventType = "task.created"
	EventDeleted EventType = "task.deleted"
)

// Event is the payload published to the task notification topic.
type Event struct {
	Type       EventType `json:"type"`
	TaskID     string    `json:"task_id"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  int64     `json:"created_at,omitempty"`
	OccurredAt int64     `json:"occurred_at"`
}

// Millis converts t to epoch milliseconds, the unit used for CreatedAt.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// SortNewestFirst orders tasks by CreatedAt descending. Equal timestamps keep their input order.
func SortNewestFirst(list []Task) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
}
