// Package pm implements the PM control loop: a periodic, single-threaded
// cooperative scan across the session registry, pressure counters, drift
// predictions, and the task cache that drives every other component by
// enqueuing actions onto internal/actionqueue (spec §4.J). Grounded on the
// teacher's internal/captain.Captain tick loop and
// internal/handlers/supervisor.go's scan-decide-enqueue shape.
package pm

import (
	"fmt"
	"log"
	"time"

	"github.com/agentfleet/pilot/internal/actionqueue"
	"github.com/agentfleet/pilot/internal/config"
	"github.com/agentfleet/pilot/internal/drift"
	"github.com/agentfleet/pilot/internal/git"
	"github.com/agentfleet/pilot/internal/notifications"
	"github.com/agentfleet/pilot/internal/pressure"
	"github.com/agentfleet/pilot/internal/registry"
	"github.com/agentfleet/pilot/internal/router"
	"github.com/agentfleet/pilot/internal/taskcache"
)

// pmSessionID is the fixed key the PM's own pressure counter and
// checkpoints are kept under — not a real registry session, just a
// namespaced slot in the same pressure/checkpoint stores (spec §4.E: "The
// PM itself checkpoints its own orchestrator state ... under a fixed
// sentinel task id").
const pmSessionID = "__pm__"

// defaultConsecutiveDivergentThreshold is used when
// orchestrator.drift_threshold rounds to less than 1 — the config field is
// documented as a score-like float (default 0.3) but step 3 of the control
// loop needs a whole-number count of consecutive divergent predictions, so
// a value below 1 falls back to this default rather than alerting on every
// single divergent call.
const defaultConsecutiveDivergentThreshold = 3

// Loop is the PM control loop's dependencies and per-tick state.
type Loop struct {
	Registry     *registry.Registry
	Pressure     *pressure.Store
	Drift        *drift.Store
	Queue        *actionqueue.Queue
	Tasks        *taskcache.Store
	Dispatcher   *notifications.Dispatcher
	Policy       config.Policy
	Skills       []router.Skill
	Affinity     router.AffinityFunc           // optional registry bonus (internal/projectregistry), spec §4.F
	WorktreeRoot func(sessionID string) string // resolves a session's worktree path for review

	lastDigestFlush time.Time
}

// NewLoop builds a Loop. Callers should set WorktreeRoot if worktree-clean
// review checks are needed; a nil func treats every review as having an
// unreadable (therefore unclean) worktree.
func NewLoop(reg *registry.Registry, pr *pressure.Store, dr *drift.Store, q *actionqueue.Queue, tasks *taskcache.Store, disp *notifications.Dispatcher, policy config.Policy, skills []router.Skill) *Loop {
	return &Loop{
		Registry:   reg,
		Pressure:   pr,
		Drift:      dr,
		Queue:      q,
		Tasks:      tasks,
		Dispatcher: disp,
		Policy:     policy,
		Skills:     skills,
	}
}

func (l *Loop) consecutiveDivergentThreshold() int {
	t := int(l.Policy.Orchestrator.DriftThreshold)
	if t < 1 {
		return defaultConsecutiveDivergentThreshold
	}
	return t
}

// Tick runs one full scan-decide-enqueue pass (spec §4.J's 8 steps). It
// never performs I/O inside a critical section that mutates the registry —
// each step loads, decides, and saves independently rather than holding a
// lock across the whole tick.
func (l *Loop) Tick(now time.Time) error {
	sessions, err := l.Registry.All()
	if err != nil {
		return fmt.Errorf("pm: load sessions: %w", err)
	}

	health := make(map[string]registry.Health, len(sessions))
	for _, s := range sessions {
		health[s.ID] = l.Registry.DeriveHealth(s, l.Policy.Session.HeartbeatIntervalSec, now)
	}

	// Spec §7: a tick never throws out on one step's failure — every step
	// runs regardless of its predecessors, and each failure is logged
	// rather than starving the rest of the tick.
	if err := l.stepPressure(sessions, now); err != nil {
		log.Printf("[PM] pressure step: %v", err)
	}
	if err := l.stepDrift(sessions); err != nil {
		log.Printf("[PM] drift step: %v", err)
	}
	if err := l.stepAssignTasks(sessions); err != nil {
		log.Printf("[PM] assign step: %v", err)
	}
	if err := l.stepStaleCleanup(sessions, health); err != nil {
		log.Printf("[PM] cleanup step: %v", err)
	}
	if err := l.stepWorkReview(); err != nil {
		log.Printf("[PM] review step: %v", err)
	}
	if err := l.stepSelfCheckpoint(sessions, now); err != nil {
		log.Printf("[PM] self-checkpoint step: %v", err)
	}
	l.stepDigestFlush(now)

	return nil
}

// stepPressure is step 2: enqueue compact_request for any session at or
// above the nudge threshold that hasn't already been nudged at this level.
func (l *Loop) stepPressure(sessions []*registry.Session, now time.Time) error {
	for _, s := range sessions {
		if s.Status != registry.StatusActive {
			continue
		}
		counter, err := l.Pressure.Get(s.ID)
		if err != nil {
			return err
		}
		pct := l.Pressure.Percentage(counter)
		if !pressure.ShouldNudge(pct, counter.LastNudgePct) {
			continue
		}
		if _, err := l.Queue.Enqueue("compact_request", actionqueue.PriorityNormal, map[string]interface{}{
			"session_id":   s.ID,
			"pressure_pct": pct,
			"pressure":     pressure.Describe(counter, l.Pressure.Capacity()),
		}); err != nil {
			return err
		}
		if err := l.Pressure.SetLastNudgePct(s.ID, pct); err != nil {
			return err
		}
	}
	return nil
}

// stepDrift is step 3: enqueue drift_alert when a session's most recent
// predictions are consecutively divergent past threshold.
func (l *Loop) stepDrift(sessions []*registry.Session) error {
	threshold := l.consecutiveDivergentThreshold()
	for _, s := range sessions {
		if s.Status != registry.StatusActive {
			continue
		}
		state, err := l.Drift.LoadSession(s.ID)
		if err != nil {
			return err
		}
		count := drift.ConsecutiveDivergent(state)
		if count < threshold {
			continue
		}
		if _, err := l.Queue.Enqueue("drift_alert", actionqueue.PriorityBlocking, map[string]interface{}{
			"session_id":           s.ID,
			"consecutive_divergent": count,
		}); err != nil {
			return err
		}
	}
	return nil
}

// stepAssignTasks is step 4: route every unowned task, enqueuing
// assign_task when a role clears the confidence threshold, else
// agent_assistance with the ranked score list.
func (l *Loop) stepAssignTasks(sessions []*registry.Session) error {
	unassigned, err := l.Tasks.Unassigned()
	if err != nil {
		return err
	}
	if len(unassigned) == 0 {
		return nil
	}

	claimedByRole := make(map[string]int)
	for _, s := range sessions {
		if s.Status == registry.StatusActive && s.ClaimedTaskID != nil {
			claimedByRole[s.Role]++
		}
	}
	claimedCount := func(role string) int { return claimedByRole[role] }

	for _, t := range unassigned {
		task := router.Task{Title: t.Title, Description: t.Description, Labels: t.Labels, Files: t.Files}
		routed := router.Route(task, l.Skills, router.DefaultConfidenceThreshold, l.Affinity, claimedCount)
		if routed.Matched {
			if _, err := l.Queue.Enqueue("assign_task", actionqueue.PriorityNormal, map[string]interface{}{
				"task_id": t.ID,
				"role":    routed.Best.Role,
				"score":   routed.Best.Score,
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := l.Queue.Enqueue("agent_assistance", actionqueue.PriorityLow, map[string]interface{}{
			"task_id": t.ID,
			"reason":  routed.Reason,
			"ranked":  routed.Ranked,
		}); err != nil {
			return err
		}
	}
	return nil
}

// stepStaleCleanup is step 5: dead sessions are ended and their task
// orphaned back to the pool; stale sessions are treated the same way only
// when policy opts into auto-reassignment.
func (l *Loop) stepStaleCleanup(sessions []*registry.Session, health map[string]registry.Health) error {
	for _, s := range sessions {
		if s.Status != registry.StatusActive {
			continue
		}
		h := health[s.ID]
		switch {
		case h == registry.HealthDead:
			if err := l.reclaimSession(s, "dead"); err != nil {
				return err
			}
		case h == registry.HealthStale && l.Policy.Orchestrator.AutoReassignStale:
			if err := l.reclaimSession(s, "stale"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loop) reclaimSession(s *registry.Session, reason string) error {
	var orphaned string
	if s.ClaimedTaskID != nil {
		orphaned = *s.ClaimedTaskID
		if err := l.Tasks.Release(orphaned); err != nil {
			log.Printf("[PM] release orphaned task %s: %v", orphaned, err)
		}
	}
	if err := l.Registry.MarkDead(s.ID, reason); err != nil {
		return err
	}
	if _, err := l.Queue.Enqueue("session_cleanup", actionqueue.PriorityNormal, map[string]interface{}{
		"session_id":     s.ID,
		"reason":         reason,
		"orphaned_task":  orphaned,
	}); err != nil {
		return err
	}
	return nil
}

// stepWorkReview is step 6: every task awaiting review is checked against
// the four review gates; approved tasks enqueue review_merge, rejected
// ones go back to their assignee with feedback.
func (l *Loop) stepWorkReview() error {
	pending, err := l.Tasks.InReview()
	if err != nil {
		return err
	}
	for _, t := range pending {
		in := l.gatherReviewInput(t)
		result := Review(in)
		if result.Approved {
			if err := l.Tasks.Complete(t.ID); err != nil {
				return err
			}
			if _, err := l.Queue.Enqueue("review_merge", actionqueue.PriorityNormal, map[string]interface{}{
				"task_id": t.ID,
			}); err != nil {
				return err
			}
			continue
		}
		if err := l.Tasks.Reject(t.ID); err != nil {
			return err
		}
		if _, err := l.Queue.Enqueue("review_rejected", actionqueue.PriorityNormal, map[string]interface{}{
			"task_id":  t.ID,
			"feedback": result.Feedback,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) gatherReviewInput(t taskcache.Task) ReviewInput {
	in := ReviewInput{TestsRequired: l.Policy.Orchestrator.RequireTestsPass}

	if cp, ok, err := l.Pressure.Load(t.AssignedTo); err == nil && ok {
		in.PlanStepsCompleted = cp.CompletedSteps
		in.PlanStepsTotal = cp.TotalSteps
	}
	if state, err := l.Drift.LoadSession(t.AssignedTo); err == nil {
		in.ConsecutiveDivergent = drift.ConsecutiveDivergent(state)
	}

	in.WorktreeClean = false
	if l.WorktreeRoot != nil {
		if path := l.WorktreeRoot(t.AssignedTo); path != "" {
			repo := git.New(path)
			if dirty, err := repo.HasUncommittedChanges(); err == nil {
				in.WorktreeClean = !dirty
			}
		}
	}
	return in
}

// stepSelfCheckpoint is step 7: the PM checkpoints its own orchestrator
// state once its own pressure counter crosses the nudge threshold.
func (l *Loop) stepSelfCheckpoint(sessions []*registry.Session, now time.Time) error {
	counter, err := l.Pressure.Get(pmSessionID)
	if err != nil {
		return err
	}
	pct := l.Pressure.Percentage(counter)
	if !pressure.ShouldNudge(pct, counter.LastNudgePct) {
		return nil
	}

	pending, err := l.Queue.Pending()
	if err != nil {
		return err
	}
	active := 0
	for _, s := range sessions {
		if s.Status == registry.StatusActive {
			active++
		}
	}

	cp := pressure.Checkpoint{
		SessionID:      pmSessionID,
		TaskID:         pressure.PMSentinelTaskID,
		TaskTitle:      "orchestrator state",
		CurrentContext: fmt.Sprintf("active sessions: %d, queued actions: %d", active, len(pending)),
	}
	if _, err := l.Pressure.Save(cp); err != nil {
		return err
	}
	return l.Pressure.SetLastNudgePct(pmSessionID, pct)
}

// stepDigestFlush is step 8: flush the notification digest once the
// configured interval has elapsed since the last flush.
func (l *Loop) stepDigestFlush(now time.Time) {
	interval := time.Duration(l.Policy.Notifications.DigestIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if l.lastDigestFlush.IsZero() {
		l.lastDigestFlush = now
		return
	}
	if now.Sub(l.lastDigestFlush) < interval {
		return
	}
	l.Dispatcher.FlushDigest()
	l.lastDigestFlush = now
}

// Run drives Tick on a fixed interval until stop is closed.
func Run(l *Loop, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := l.Tick(time.Now()); err != nil {
				log.Printf("[PM] tick error: %v", err)
			}
		case <-stop:
			return
		}
	}
}
