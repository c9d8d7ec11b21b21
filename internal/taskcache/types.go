// Package taskcache is the orchestrator's local cache of task metadata
// (spec §3 "Task. Opaque identifier plus metadata... Source-of-truth is an
// external task tracker; the orchestrator caches the minimum needed").
// Grounded on the teacher's internal/tasks.Task/Store (SQLite-backed),
// trimmed to the fields the router and PM loop actually need.
package taskcache

import "time"

// Status is the cache's view of a task's ownership lifecycle. It tracks
// only what the PM loop needs to decide routing and review, not the full
// external tracker's workflow.
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

// Task is the cached metadata for one external task-tracker item.
type Task struct {
	ID          string
	Title       string
	Description string
	Labels      []string
	Files       []string // expected files, used by the router's file_pattern score
	Status      Status
	AssignedTo  string // session id, empty if unassigned
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
