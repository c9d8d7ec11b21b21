package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/pilot/internal/atomicstore"
	"github.com/agentfleet/pilot/internal/instance"
	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// Registry manages session records under a project-rooted state/ tree.
// It reloads from the filesystem on every call rather than caching —
// spec §5 "the PM loop reloads on every tick; there are no shared
// in-memory data structures across processes."
type Registry struct {
	stateDir string
	mu       sync.Mutex // serializes this process's own claim attempts
}

// New creates a Registry rooted at stateDir (typically "<project>/state").
func New(stateDir string) *Registry {
	return &Registry{stateDir: stateDir}
}

func (r *Registry) sessionPath(sid string) string {
	return filepath.Join(r.stateDir, "sessions", sid+".json")
}

func (r *Registry) lockPath(sid string) string {
	return filepath.Join(r.stateDir, "sessions", sid+".lock")
}

func (r *Registry) taskLockPath(taskID string) string {
	return filepath.Join(r.stateDir, "sessions", ".task-locks", taskID+".lock")
}

func (r *Registry) areaLockPath(area string) string {
	return filepath.Join(r.stateDir, "sessions", ".area-locks", sanitizeKey(area)+".lock")
}

func (r *Registry) fileLockPath(path string) string {
	return filepath.Join(r.stateDir, "sessions", ".file-locks", sanitizeKey(path)+".lock")
}

func sanitizeKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Start creates a new session record and writes its PID-bearing lockfile
// (spec §3: "Session lockfile ... liveness proof"). Returns the new
// session-id.
func (r *Registry) Start(role string, worktree string) (string, error) {
	sid := uuid.New().String()
	now := time.Now()
	pid := os.Getpid()

	var worktreePtr *string
	if worktree != "" {
		worktreePtr = &worktree
	}

	sess := Session{
		ID:            sid,
		Role:          role,
		Status:        StatusActive,
		LastHeartbeat: now,
		WorktreePath:  worktreePtr,
		ProcessID:     &pid,
		CreatedAt:     now,
	}

	if err := writeLockfile(r.lockPath(sid), pid); err != nil {
		return "", err
	}
	if err := r.save(&sess); err != nil {
		os.Remove(r.lockPath(sid))
		return "", err
	}
	log.Printf("[REGISTRY] session %s started role=%s pid=%d", sid, role, pid)
	return sid, nil
}

func writeLockfile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pilotlerr.New(pilotlerr.IO, "registry.writeLockfile mkdir", err)
	}
	data := []byte(fmt.Sprintf("%d\n", pid))
	return atomicstore.WriteFileAtomic(path, data)
}

func readLockfilePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, false
	}
	return pid, true
}

func (r *Registry) save(s *Session) error {
	return atomicstore.WriteJSON(r.sessionPath(s.ID), s)
}

// Get loads a session record, or UnknownSession if it doesn't exist.
func (r *Registry) Get(sid string) (*Session, error) {
	var s Session
	ok, err := atomicstore.ReadJSON(r.sessionPath(sid), &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pilotlerr.New(pilotlerr.UnknownSession, "registry.Get", fmt.Errorf("session %s not found", sid))
	}
	return &s, nil
}

// All lists every session record currently on disk.
func (r *Registry) All() ([]*Session, error) {
	dir := filepath.Join(r.stateDir, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pilotlerr.New(pilotlerr.IO, "registry.All readdir", err)
	}
	var out []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		sid := e.Name()[:len(e.Name())-len(".json")]
		sess, err := r.Get(sid)
		if err != nil {
			continue // corrupt/partial record — skip rather than fail the whole scan
		}
		out = append(out, sess)
	}
	return out, nil
}

// Heartbeat updates a session's last-heartbeat timestamp.
func (r *Registry) Heartbeat(sid string) error {
	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	s.LastHeartbeat = time.Now()
	return r.save(s)
}

// Claim attempts to give sid ownership of taskID, validated atomically via
// an O_CREATE|O_EXCL lock marker (spec §4.B). Returns ClaimConflict if
// another live session already owns the task.
func (r *Registry) Claim(sid, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Get(sid)
	if err != nil {
		return err
	}

	lockPath := r.taskLockPath(taskID)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return pilotlerr.New(pilotlerr.IO, "registry.Claim mkdir", err)
	}

	if err := r.tryCreateLockMarker(lockPath, sid); err != nil {
		return err
	}

	id := taskID
	s.ClaimedTaskID = &id
	if err := r.save(s); err != nil {
		os.Remove(lockPath)
		return err
	}
	log.Printf("[REGISTRY] session %s claimed task %s", sid, taskID)
	return nil
}

// tryCreateLockMarker creates an exclusive marker file naming owner. If one
// already exists, it steals the marker when its owning session is no longer
// alive (§I3: an expired/dead owner does not block new claims), otherwise
// reports ClaimConflict.
func (r *Registry) tryCreateLockMarker(lockPath, owner string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		_, werr := f.WriteString(owner)
		f.Close()
		if werr != nil {
			os.Remove(lockPath)
			return pilotlerr.New(pilotlerr.IO, "registry.tryCreateLockMarker write", werr)
		}
		return nil
	}
	if !os.IsExist(err) {
		return pilotlerr.New(pilotlerr.IO, "registry.tryCreateLockMarker open", err)
	}

	existingOwner, _ := os.ReadFile(lockPath)
	ownerSid := string(existingOwner)
	if ownerSid == owner {
		return nil // idempotent re-claim by the same session
	}

	if r.isSessionLive(ownerSid) {
		return pilotlerr.New(pilotlerr.ClaimConflict, "registry.Claim",
			fmt.Errorf("already claimed by session %s", ownerSid))
	}

	// Owning session is dead: steal the marker.
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return pilotlerr.New(pilotlerr.IO, "registry.tryCreateLockMarker steal-remove", err)
	}
	return r.tryCreateLockMarker(lockPath, owner)
}

// isSessionLive reports whether sid currently holds a live lockfile.
func (r *Registry) isSessionLive(sid string) bool {
	if sid == "" {
		return false
	}
	pid, ok := readLockfilePID(r.lockPath(sid))
	if !ok {
		return false
	}
	alive, _ := instance.IsProcessRunning(pid)
	return alive
}

// Release relinquishes sid's claimed task, if any.
func (r *Registry) Release(sid string) error {
	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	if s.ClaimedTaskID != nil {
		os.Remove(r.taskLockPath(*s.ClaimedTaskID))
		log.Printf("[REGISTRY] session %s released task %s", sid, *s.ClaimedTaskID)
		s.ClaimedTaskID = nil
	}
	return r.save(s)
}

// LockAreas attempts to acquire exclusive ownership of the given areas for
// sid, enforcing invariant I2 (locked-areas disjoint across active
// sessions).
func (r *Registry) LockAreas(sid string, areas []string) error {
	return r.lockResources(sid, areas, r.areaLockPath, func(s *Session, locked []string) {
		for _, a := range locked {
			s.LockedAreas = addString(s.LockedAreas, a)
		}
	})
}

// LockFiles attempts to acquire exclusive ownership of the given files for
// sid, enforcing invariant I2 for locked-files.
func (r *Registry) LockFiles(sid string, files []string) error {
	return r.lockResources(sid, files, r.fileLockPath, func(s *Session, locked []string) {
		for _, f := range locked {
			s.LockedFiles = addString(s.LockedFiles, f)
		}
	})
}

func (r *Registry) lockResources(sid string, resources []string, pathFn func(string) string, apply func(*Session, []string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Get(sid)
	if err != nil {
		return err
	}

	var acquired []string
	for _, res := range resources {
		p := pathFn(res)
		if mkErr := os.MkdirAll(filepath.Dir(p), 0o755); mkErr != nil {
			r.rollbackLocks(acquired, pathFn)
			return pilotlerr.New(pilotlerr.IO, "registry.lockResources mkdir", mkErr)
		}
		if lockErr := r.tryCreateLockMarker(p, sid); lockErr != nil {
			r.rollbackLocks(acquired, pathFn)
			if pilotlerr.Is(lockErr, pilotlerr.ClaimConflict) {
				return pilotlerr.New(pilotlerr.AreaLocked, "registry.lockResources",
					fmt.Errorf("resource %q locked: %w", res, lockErr))
			}
			return lockErr
		}
		acquired = append(acquired, res)
	}

	apply(s, acquired)
	return r.save(s)
}

func (r *Registry) rollbackLocks(acquired []string, pathFn func(string) string) {
	for _, res := range acquired {
		os.Remove(pathFn(res))
	}
}

// UnlockAreas / UnlockFiles release previously-acquired locks for sid.
func (r *Registry) UnlockAreas(sid string, areas []string) error {
	return r.unlockResources(sid, areas, r.areaLockPath, func(s *Session, freed []string) {
		for _, a := range freed {
			s.LockedAreas = removeString(s.LockedAreas, a)
		}
	})
}

func (r *Registry) UnlockFiles(sid string, files []string) error {
	return r.unlockResources(sid, files, r.fileLockPath, func(s *Session, freed []string) {
		for _, f := range freed {
			s.LockedFiles = removeString(s.LockedFiles, f)
		}
	})
}

func (r *Registry) unlockResources(sid string, resources []string, pathFn func(string) string, apply func(*Session, []string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	for _, res := range resources {
		os.Remove(pathFn(res))
	}
	apply(s, resources)
	return r.save(s)
}

// End terminates a session with a reason, releasing its claim and removing
// its lockfile. Status transitions to Ended, which is monotone.
func (r *Registry) End(sid, reason string) error {
	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	if s.Status == StatusEnded || s.Status == StatusDead {
		return nil // terminal states are monotone
	}
	if s.ClaimedTaskID != nil {
		os.Remove(r.taskLockPath(*s.ClaimedTaskID))
		s.ClaimedTaskID = nil
	}
	for _, a := range s.LockedAreas {
		os.Remove(r.areaLockPath(a))
	}
	for _, f := range s.LockedFiles {
		os.Remove(r.fileLockPath(f))
	}
	s.LockedAreas = nil
	s.LockedFiles = nil
	s.Status = StatusEnded
	s.EndReason = reason
	os.Remove(r.lockPath(sid))
	log.Printf("[REGISTRY] session %s ended reason=%q", sid, reason)
	return r.save(s)
}

// MarkDead transitions a session to Dead (supervisor-driven, on death
// detection), releasing its claims the same way End does.
func (r *Registry) MarkDead(sid, reason string) error {
	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	if s.Status == StatusEnded || s.Status == StatusDead {
		return nil
	}
	orphaned := s.ClaimedTaskID
	if orphaned != nil {
		os.Remove(r.taskLockPath(*orphaned))
		s.ClaimedTaskID = nil
	}
	for _, a := range s.LockedAreas {
		os.Remove(r.areaLockPath(a))
	}
	for _, f := range s.LockedFiles {
		os.Remove(r.fileLockPath(f))
	}
	s.LockedAreas = nil
	s.LockedFiles = nil
	s.Status = StatusDead
	s.EndReason = reason
	os.Remove(r.lockPath(sid))
	log.Printf("[REGISTRY] session %s marked dead reason=%q", sid, reason)
	return r.save(s)
}

// IsAlive reports the liveness of sid's owning process via the lockfile's
// PID and a zero-signal probe.
func (r *Registry) IsAlive(sid string) (bool, error) {
	if _, err := r.Get(sid); err != nil {
		return false, err
	}
	return r.isSessionLive(sid), nil
}

// DeriveHealth computes the richer 5-value health classification spec
// §4.B demands, used by the PM loop rather than the persisted Status
// field.
func (r *Registry) DeriveHealth(s *Session, heartbeatIntervalSec int, now time.Time) Health {
	if !r.isSessionLive(s.ID) {
		return HealthDead
	}
	interval := time.Duration(heartbeatIntervalSec) * time.Second
	age := now.Sub(s.LastHeartbeat)
	switch {
	case age > 3*interval:
		return HealthUnresponsive
	case age > 2*interval:
		return HealthStale
	case s.LeaseExpiresAt != nil && s.LeaseExpiresAt.Before(now):
		return HealthLeaseExpired
	default:
		return HealthHealthy
	}
}

// SetLease sets sid's lease-expires-at timestamp.
func (r *Registry) SetLease(sid string, expiresAt time.Time) error {
	s, err := r.Get(sid)
	if err != nil {
		return err
	}
	s.LeaseExpiresAt = &expiresAt
	return r.save(s)
}
