package drift

import (
	"path/filepath"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
)

// GuardrailStats is the aggregate, cross-session record of guardrail
// actions taken (state/drift-predictions/guardrail-stats.json).
type GuardrailStats struct {
	Allows    int `json:"allows"`
	Warns     int `json:"warns"`
	Refreshes int `json:"refreshes"`
	Redirects int `json:"redirects"`
}

func (s *GuardrailStats) record(action Action) {
	switch action {
	case ActionAllow:
		s.Allows++
	case ActionWarn:
		s.Warns++
	case ActionRefresh:
		s.Refreshes++
	case ActionRedirect:
		s.Redirects++
	}
}

// Store persists per-session drift prediction rings and the aggregate
// guardrail stats under state/drift-predictions/.
type Store struct {
	stateDir string
	cfg      GuardrailConfig
}

// New creates a Store rooted at stateDir using the spec's default
// guardrail configuration.
func New(stateDir string) *Store {
	return &Store{stateDir: stateDir, cfg: DefaultGuardrailConfig()}
}

// WithConfig overrides the guardrail configuration.
func (s *Store) WithConfig(cfg GuardrailConfig) *Store {
	s.cfg = cfg
	return s
}

func (s *Store) sessionPath(sid string) string {
	return filepath.Join(s.stateDir, "drift-predictions", sid+".json")
}

func (s *Store) statsPath() string {
	return filepath.Join(s.stateDir, "drift-predictions", "guardrail-stats.json")
}

// LoadSession loads sid's drift state, or a zero-value state if none
// exists yet.
func (s *Store) LoadSession(sid string) (SessionState, error) {
	var state SessionState
	if _, err := atomicstore.ReadJSON(s.sessionPath(sid), &state); err != nil {
		return SessionState{}, err
	}
	if state.Stats.RefreshesPerStep == nil {
		state.Stats.RefreshesPerStep = map[int]int{}
	}
	return state, nil
}

func (s *Store) saveSession(sid string, state SessionState) error {
	return atomicstore.WriteJSON(s.sessionPath(sid), &state)
}

// LoadStats loads the aggregate guardrail stats.
func (s *Store) LoadStats() (GuardrailStats, error) {
	var stats GuardrailStats
	if _, err := atomicstore.ReadJSON(s.statsPath(), &stats); err != nil {
		return GuardrailStats{}, err
	}
	return stats, nil
}

func (s *Store) saveStats(stats GuardrailStats) error {
	return atomicstore.WriteJSON(s.statsPath(), &stats)
}

// Evaluate scores tool against step for session sid, applies the
// guardrail decision table, persists the updated per-session ring and
// aggregate stats, and returns the decision.
func (s *Store) Evaluate(sid string, step PlanStep, tool ToolUse, now time.Time) (Decision, error) {
	state, err := s.LoadSession(sid)
	if err != nil {
		return Decision{}, err
	}

	g := NewGuardrail(s.cfg)
	decision := g.Decide(&state, step, tool, now)

	if err := s.saveSession(sid, state); err != nil {
		return Decision{}, err
	}

	stats, err := s.LoadStats()
	if err != nil {
		return Decision{}, err
	}
	stats.record(decision.Action)
	if err := s.saveStats(stats); err != nil {
		return Decision{}, err
	}

	return decision, nil
}

// ConsecutiveDivergent reports how many of the most recent predictions
// (from the tail of the ring) are divergent, stopping at the first
// non-divergent one — used by the PM loop's drift_alert threshold check
// (spec §4.J.3).
func ConsecutiveDivergent(state SessionState) int {
	count := 0
	for i := len(state.Predictions) - 1; i >= 0; i-- {
		if state.Predictions[i].Level != LevelDivergent {
			break
		}
		count++
	}
	return count
}
