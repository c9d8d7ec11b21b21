package taskcache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
)

// Store is the file-backed cache of task metadata, one JSON document per
// orchestrator instance (task-cache.json in the directory given to
// NewStore; pilotd passes its state directory). Grounded on
// the teacher's internal/tasks.Store CRUD surface, re-expressed over
// atomicstore instead of SQLite per spec §5's filesystem-is-source-of-truth
// model — the PM loop reloads this file on every tick rather than holding
// it in memory across restarts.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store rooted at stateDir.
func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, "task-cache.json")}
}

type storeFile struct {
	Tasks map[string]Task `json:"tasks"`
}

func (s *Store) load() (storeFile, error) {
	var sf storeFile
	found, err := atomicstore.ReadJSON(s.path, &sf)
	if err != nil {
		return storeFile{}, err
	}
	if !found || sf.Tasks == nil {
		sf.Tasks = make(map[string]Task)
	}
	return sf, nil
}

func (s *Store) save(sf storeFile) error {
	return atomicstore.WriteJSON(s.path, sf)
}

// Upsert inserts or replaces the cached metadata for a task, preserving
// CreatedAt and AssignedTo/Status across a metadata-only refresh from the
// external tracker unless the caller explicitly sets them.
func (s *Store) Upsert(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}

	now := time.Now()
	if existing, ok := sf.Tasks[t.ID]; ok {
		t.CreatedAt = existing.CreatedAt
		if t.Status == "" {
			t.Status = existing.Status
		}
		if t.AssignedTo == "" {
			t.AssignedTo = existing.AssignedTo
		}
	} else {
		t.CreatedAt = now
		if t.Status == "" {
			t.Status = StatusUnassigned
		}
	}
	t.UpdatedAt = now
	sf.Tasks[t.ID] = t
	return s.save(sf)
}

// Get returns the cached task by id.
func (s *Store) Get(id string) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return Task{}, false, err
	}
	t, ok := sf.Tasks[id]
	return t, ok, nil
}

// Unassigned returns every cached task with no owning session, in
// insertion-stable order (oldest CreatedAt first) for the router to scan.
func (s *Store) Unassigned() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0)
	for _, t := range sf.Tasks {
		if t.Status == StatusUnassigned {
			out = append(out, t)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// Assign marks a task owned by sessionID.
func (s *Store) Assign(id, sessionID string) error {
	return s.transition(id, func(t *Task) {
		t.Status = StatusAssigned
		t.AssignedTo = sessionID
	})
}

// Release clears ownership, returning a task to the unassigned pool — used
// when the PM loop reclaims work from a dead or stale session.
func (s *Store) Release(id string) error {
	return s.transition(id, func(t *Task) {
		t.Status = StatusUnassigned
		t.AssignedTo = ""
	})
}

// MarkForReview moves a task into the PM loop's work-review queue,
// preserving its current assignee.
func (s *Store) MarkForReview(id string) error {
	return s.transition(id, func(t *Task) {
		t.Status = StatusReview
	})
}

// Complete marks a task done, e.g. after the PM loop's work-review step
// accepts it.
func (s *Store) Complete(id string) error {
	return s.transition(id, func(t *Task) {
		t.Status = StatusCompleted
	})
}

// Reject sends a task back to its assignee for rework after a failed
// work review, preserving ownership.
func (s *Store) Reject(id string) error {
	return s.transition(id, func(t *Task) {
		t.Status = StatusAssigned
	})
}

// InReview returns every cached task currently awaiting work review.
func (s *Store) InReview() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0)
	for _, t := range sf.Tasks {
		if t.Status == StatusReview {
			out = append(out, t)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *Store) transition(id string, mutate func(t *Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}
	t, ok := sf.Tasks[id]
	if !ok {
		return fmt.Errorf("taskcache: unknown task %s", id)
	}
	mutate(&t)
	t.UpdatedAt = time.Now()
	sf.Tasks[id] = t
	return s.save(sf)
}

// ByAssignee returns every task currently owned by sessionID, used when a
// session is marked dead or stale and its work needs re-routing.
func (s *Store) ByAssignee(sessionID string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0)
	for _, t := range sf.Tasks {
		if t.AssignedTo == sessionID {
			out = append(out, t)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func sortByCreatedAt(tasks []Task) {
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && tasks[j].CreatedAt.Before(tasks[j-1].CreatedAt); j-- {
			tasks[j], tasks[j-1] = tasks[j-1], tasks[j]
		}
	}
}
