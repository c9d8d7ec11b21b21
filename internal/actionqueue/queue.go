// Package actionqueue is the single-writer/single-reader persistent queue
// the PM control loop uses to hand off work to itself across ticks and
// restarts (spec §4.I). Grounded on the teacher's internal/tasks.Queue
// priority-ordering shape, backed by internal/atomicstore instead of an
// in-memory slice.
package actionqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
)

// Priority orders actions within the queue; lower value drains first.
type Priority int

const (
	PriorityBlocking Priority = 0
	PriorityNormal   Priority = 1
	PriorityLow      Priority = 2
)

// Status is an action's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDropped    Status = "dropped"
)

// maxQueueLen is the bounded queue length (spec §4.I / invariant P9).
const maxQueueLen = 50

// historyMaxBytes caps the history file size before it is trimmed.
const historyMaxBytes = 512 * 1024

// historyTrimToEntries is how many trailing entries survive a trim.
const historyTrimToEntries = 200

// Action is one unit of PM-generated work.
type Action struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Priority  Priority               `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	Status    Status                 `json:"status"`
	Result    string                 `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Queue is the bounded, file-persisted action queue.
type Queue struct {
	mu          sync.Mutex
	queuePath   string
	historyPath string
	seq         int
}

// New creates a Queue rooted at stateDir (state/orchestrator/...).
func New(stateDir string) *Queue {
	return &Queue{
		queuePath:   filepath.Join(stateDir, "pm-action-queue.json"),
		historyPath: filepath.Join(stateDir, "pm-action-history.jsonl"),
	}
}

type queueFile struct {
	Actions []Action `json:"actions"`
	Seq     int      `json:"seq"`
}

func (q *Queue) load() (queueFile, error) {
	var qf queueFile
	found, err := atomicstore.ReadJSON(q.queuePath, &qf)
	if err != nil {
		return queueFile{}, err
	}
	if !found {
		return queueFile{}, nil
	}
	return qf, nil
}

func (q *Queue) save(qf queueFile) error {
	return atomicstore.WriteJSON(q.queuePath, qf)
}

func (q *Queue) nextID(qf queueFile) string {
	q.seq = qf.Seq + 1
	return fmt.Sprintf("act-%d", q.seq)
}

// sortPending orders pending actions by priority then FIFO (creation time),
// mirroring the teacher's Queue.sortLocked.
func sortPending(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority < actions[j].Priority
		}
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
}

// oldestIndex returns the index of the action with the earliest CreatedAt,
// independent of priority — overflow eviction drops strictly by age
// (spec §4.I: "the oldest are moved to a history file").
func oldestIndex(actions []Action) int {
	oldest := 0
	for i := 1; i < len(actions); i++ {
		if actions[i].CreatedAt.Before(actions[oldest].CreatedAt) {
			oldest = i
		}
	}
	return oldest
}

// Enqueue appends action, assigning it an id. If this pushes the queue
// past maxQueueLen, the oldest actions by creation time are dropped into
// history with status=dropped until length is restored.
func (q *Queue) Enqueue(actionType string, priority Priority, payload map[string]interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	qf, err := q.load()
	if err != nil {
		return "", err
	}

	now := time.Now()
	id := q.nextID(qf)
	qf.Seq = q.seq
	action := Action{
		ID:        id,
		Type:      actionType,
		Priority:  priority,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	qf.Actions = append(qf.Actions, action)

	for len(qf.Actions) > maxQueueLen {
		idx := oldestIndex(qf.Actions)
		oldest := qf.Actions[idx]
		qf.Actions = append(qf.Actions[:idx], qf.Actions[idx+1:]...)
		oldest.Status = StatusDropped
		oldest.UpdatedAt = time.Now()
		if err := q.appendHistory(oldest); err != nil {
			return "", err
		}
	}
	sortPending(qf.Actions)

	if err := q.save(qf); err != nil {
		return "", err
	}
	return id, nil
}

// Dequeue returns the oldest pending action (by priority/FIFO), flipping
// its status to processing, or false if the queue is empty of pending work.
func (q *Queue) Dequeue() (Action, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	qf, err := q.load()
	if err != nil {
		return Action{}, false, err
	}

	for i := range qf.Actions {
		if qf.Actions[i].Status == StatusPending {
			qf.Actions[i].Status = StatusProcessing
			qf.Actions[i].UpdatedAt = time.Now()
			result := qf.Actions[i]
			if err := q.save(qf); err != nil {
				return Action{}, false, err
			}
			return result, true, nil
		}
	}
	return Action{}, false, nil
}

// Complete removes action id from the live queue and appends it to
// history with status=completed and the given result.
func (q *Queue) Complete(id string, result string) error {
	return q.finish(id, StatusCompleted, result, "")
}

// Fail removes action id from the live queue and appends it to history
// with status=failed and the given error message.
func (q *Queue) Fail(id string, errMsg string) error {
	return q.finish(id, StatusFailed, "", errMsg)
}

func (q *Queue) finish(id string, status Status, result, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	qf, err := q.load()
	if err != nil {
		return err
	}

	idx := -1
	for i, a := range qf.Actions {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("actionqueue: unknown action %s", id)
	}

	action := qf.Actions[idx]
	action.Status = status
	action.Result = result
	action.Error = errMsg
	action.UpdatedAt = time.Now()

	qf.Actions = append(qf.Actions[:idx], qf.Actions[idx+1:]...)
	if err := q.save(qf); err != nil {
		return err
	}
	return q.appendHistory(action)
}

func (q *Queue) appendHistory(action Action) error {
	if err := atomicstore.AppendJSONL(q.historyPath, action); err != nil {
		return err
	}
	return q.trimHistoryIfNeeded()
}

func historyFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (q *Queue) trimHistoryIfNeeded() error {
	size, err := historyFileSize(q.historyPath)
	if err != nil || size < historyMaxBytes {
		return nil
	}

	entries, err := atomicstore.UnmarshalJSONL[Action](q.historyPath)
	if err != nil {
		return err
	}
	if len(entries) <= historyTrimToEntries {
		return nil
	}
	trimmed := entries[len(entries)-historyTrimToEntries:]

	generic := make([]interface{}, len(trimmed))
	for i, e := range trimmed {
		generic[i] = e
	}
	return atomicstore.RewriteJSONL(q.historyPath, generic)
}

// Len reports the current live queue length (pending + processing).
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	qf, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(qf.Actions), nil
}

// Pending returns a snapshot of every action still queued, in drain order.
func (q *Queue) Pending() ([]Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	qf, err := q.load()
	if err != nil {
		return nil, err
	}
	out := make([]Action, len(qf.Actions))
	copy(out, qf.Actions)
	return out, nil
}

// Requeue finds id in the completed/failed/dropped history and re-enqueues
// a fresh copy of it (same type/priority/payload) as pending, returning the
// new action's id. Used by the operator control surface
// (POST /actions/{id}/requeue) to retry an action the drain protocol gave
// up on.
func (q *Queue) Requeue(id string) (string, error) {
	entries, err := atomicstore.UnmarshalJSONL[Action](q.historyPath)
	if err != nil {
		return "", err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == id {
			return q.Enqueue(entries[i].Type, entries[i].Priority, entries[i].Payload)
		}
	}
	return "", fmt.Errorf("actionqueue: no history entry for action %s", id)
}
