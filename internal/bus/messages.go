package bus

import "time"

// Subject pattern constants for the orchestrator's live NATS fan-out. The
// filesystem under the state directory remains the source of truth; these
// subjects are a best-effort mirror for external observers (spec §5, §8).
const (
	// SubjectSessionHeartbeat is the pattern for session heartbeat events.
	// Use fmt.Sprintf(SubjectSessionHeartbeat, sessionID).
	SubjectSessionHeartbeat = "session.%s.heartbeat"

	// SubjectSessionStatus is the pattern for session status transitions
	// (active/ended/dead).
	SubjectSessionStatus = "session.%s.status"

	// SubjectAllSessionHeartbeats subscribes to every session's heartbeats.
	SubjectAllSessionHeartbeats = "session.*.heartbeat"

	// SubjectAllSessionStatus subscribes to every session's status changes.
	SubjectAllSessionStatus = "session.*.status"

	// SubjectDriftPrediction is published each time the drift engine scores
	// an action against the active plan step.
	SubjectDriftPrediction = "drift.prediction"

	// SubjectDriftGuardrail is published when a guardrail decision (warn,
	// block, auto-refresh) fires.
	SubjectDriftGuardrail = "drift.guardrail"

	// SubjectMemoryPublished is published on every successful channel
	// publish.
	SubjectMemoryPublished = "memory.published"

	// SubjectMemoryLifecycle is published on summarise/archive/evict
	// transitions.
	SubjectMemoryLifecycle = "memory.lifecycle"

	// SubjectPMTick is published at the end of every PM control-loop tick.
	SubjectPMTick = "pm.tick"

	// SubjectPMDigest is published whenever the notification digest flushes.
	SubjectPMDigest = "pm.digest"
)

// SessionHeartbeatEvent mirrors a session's heartbeat onto the bus.
type SessionHeartbeatEvent struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStatusEvent mirrors a session status transition onto the bus.
type SessionStatusEvent struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DriftPredictionEvent mirrors one drift-engine scoring onto the bus.
type DriftPredictionEvent struct {
	SessionID string    `json:"session_id"`
	ActionID  string    `json:"action_id"`
	Score     float64   `json:"score"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// DriftGuardrailEvent mirrors a guardrail decision onto the bus.
type DriftGuardrailEvent struct {
	SessionID string    `json:"session_id"`
	Decision  string    `json:"decision"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryPublishedEvent mirrors a channel publish onto the bus.
type MemoryPublishedEvent struct {
	Channel     string    `json:"channel"`
	Version     int       `json:"version"`
	PublishedBy string    `json:"published_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// MemoryLifecycleEvent mirrors a summarise/archive/evict transition.
type MemoryLifecycleEvent struct {
	Channel   string    `json:"channel"`
	EntryID   string    `json:"entry_id"`
	Transition string   `json:"transition"` // summarized, archived, evicted
	Timestamp time.Time `json:"timestamp"`
}

// PMTickEvent summarises one PM control-loop tick.
type PMTickEvent struct {
	TickNumber    int       `json:"tick_number"`
	SessionsSeen  int       `json:"sessions_seen"`
	ActionsQueued int       `json:"actions_queued"`
	Timestamp     time.Time `json:"timestamp"`
}

// PMDigestEvent carries a flushed notification digest.
type PMDigestEvent struct {
	Count     int       `json:"count"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}
