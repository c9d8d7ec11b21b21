// Package pressure implements per-session context-window pressure tracking
// and the checkpoint engine (spec §4.E).
package pressure

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/agentfleet/pilot/internal/atomicstore"
)

const (
	// DefaultEstimatedCapacityBytes is the default context-window capacity
	// pressure percentage is computed against.
	DefaultEstimatedCapacityBytes = 800 * 1024

	// NudgeThresholdPct tells the PM the agent is approaching its limit.
	NudgeThresholdPct = 70.0

	// AutoCheckpointThresholdPct is lower than the nudge threshold so the
	// agent saves its own progress before the nudge zone, guaranteeing
	// recovery is always possible.
	AutoCheckpointThresholdPct = 60.0
)

// Counter is the per-session pressure counter (spec §3): monotone
// nondecreasing during a session, reset only on an explicit
// checkpoint+compact handshake.
type Counter struct {
	ToolCallCount int     `json:"tool_call_count"`
	OutputBytes   int64   `json:"output_bytes"`
	LastNudgePct  float64 `json:"last_nudge_pct"`
}

// Store persists pressure counters at state/sessions/<sid>.pressure.json.
type Store struct {
	stateDir           string
	estimatedCapacity  int64
}

// New creates a Store rooted at stateDir, using the default estimated
// context-window capacity.
func New(stateDir string) *Store {
	return &Store{stateDir: stateDir, estimatedCapacity: DefaultEstimatedCapacityBytes}
}

// WithCapacity overrides the estimated capacity used for Percentage.
func (s *Store) WithCapacity(bytes int64) *Store {
	s.estimatedCapacity = bytes
	return s
}

// Capacity returns the estimated context-window capacity this Store scores
// pressure percentages against.
func (s *Store) Capacity() int64 { return s.estimatedCapacity }

func (s *Store) path(sid string) string {
	return filepath.Join(s.stateDir, "sessions", sid+".pressure.json")
}

// Get loads sid's counter, or a zero counter if none exists yet.
func (s *Store) Get(sid string) (Counter, error) {
	var c Counter
	if _, err := atomicstore.ReadJSON(s.path(sid), &c); err != nil {
		return Counter{}, err
	}
	return c, nil
}

// RecordToolCall increments the call count and adds outputBytes, persisting
// the updated counter. Returns the updated counter.
func (s *Store) RecordToolCall(sid string, outputBytes int64) (Counter, error) {
	c, err := s.Get(sid)
	if err != nil {
		return Counter{}, err
	}
	c.ToolCallCount++
	c.OutputBytes += outputBytes
	if err := atomicstore.WriteJSON(s.path(sid), &c); err != nil {
		return Counter{}, err
	}
	return c, nil
}

// SetLastNudgePct records the percentage at which the session was last
// nudged, so the PM loop does not re-nudge every tick.
func (s *Store) SetLastNudgePct(sid string, pct float64) error {
	c, err := s.Get(sid)
	if err != nil {
		return err
	}
	c.LastNudgePct = pct
	return atomicstore.WriteJSON(s.path(sid), &c)
}

// Reset zeroes sid's counter — only called on the explicit
// checkpoint+compact handshake (spec §3).
func (s *Store) Reset(sid string) error {
	return atomicstore.WriteJSON(s.path(sid), &Counter{})
}

// Percentage computes pressure percentage = min(100, bytes/capacity*100).
func (s *Store) Percentage(c Counter) float64 {
	return Percentage(c.OutputBytes, s.estimatedCapacity)
}

// Percentage is the free function version for callers that already have a
// capacity figure (e.g. tests, or a per-role override).
func Percentage(bytes int64, capacity int64) float64 {
	if capacity <= 0 {
		return 100
	}
	pct := float64(bytes) / float64(capacity) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Describe renders a human-readable pressure summary for digest
// notifications, e.g. "524 kB / 819 kB (64.0%)" for 512 KiB of 800 KiB
// (humanize.Bytes uses decimal units).
func Describe(c Counter, capacity int64) string {
	return fmt.Sprintf("%s / %s (%.1f%%)", humanize.Bytes(uint64(c.OutputBytes)), humanize.Bytes(uint64(capacity)), Percentage(c.OutputBytes, capacity))
}
