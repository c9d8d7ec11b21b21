// Package relevance implements the relevance & lifecycle engine (spec
// §4.D): scoring, tiering, summarisation, archive, eviction, consolidation.
package relevance

import "time"

// State is a memory record's lifecycle stage (spec §3).
type State string

const (
	StateFull     State = "full"
	StateSummary  State = "summary"
	StateArchived State = "archived"
)

// Entry is the scoring engine's view of a memory record — a superset of
// whatever channel/per-agent-log shape the caller has, projected onto the
// attributes the engine needs.
type Entry struct {
	ID           string                 `json:"id"`
	Tags         []string               `json:"tags,omitempty"`
	Files        []string               `json:"files,omitempty"`
	AccessCount  int                    `json:"access_count"`
	LinkCount    int                    `json:"link_count"`
	LastAccessed time.Time              `json:"last_accessed"`
	State        State                  `json:"state"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Context is the task context an entry is scored against (spec §4.D
// Similarity).
type Context struct {
	Tags  []string
	Files []string
}

// Weights are the four relevance sub-score weights (spec §4.D); they must
// sum to ≈1 but the engine does not enforce that — callers own config
// validity.
type Weights struct {
	Recency    float64
	Frequency  float64
	Similarity float64
	Links      float64
}

// DefaultWeights matches spec §4.D's stated default.
func DefaultWeights() Weights {
	return Weights{Recency: 0.30, Frequency: 0.25, Similarity: 0.25, Links: 0.20}
}

// Breakdown carries the four computed sub-scores alongside the composite.
type Breakdown struct {
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Similarity float64 `json:"similarity"`
	Links      float64 `json:"links"`
}

// Scored pairs an Entry with its computed relevance.
type Scored struct {
	Entry     Entry     `json:"entry"`
	Relevance float64   `json:"relevance"`
	Breakdown Breakdown `json:"breakdown"`
}

// Config holds the tunable thresholds spec §4.D names (mirrors
// internal/config.MemoryPolicy — callers typically build one from a loaded
// Policy).
type Config struct {
	Weights                    Weights
	HalfLifeDays               float64
	FullThreshold              float64
	SummaryAfterDays           float64
	ArchiveAfterDays           float64
	MaxSummaryLen              int
	MinEntriesForConsolidation int
	EvictionTriggerPct         float64
	EvictionTargetPct          float64
	LoadingRelevanceThreshold  float64
	TierFullThreshold          float64
}

// DefaultConfig matches the documented defaults spec §4.D/§4 state.
func DefaultConfig() Config {
	return Config{
		Weights:                    DefaultWeights(),
		HalfLifeDays:               7,
		FullThreshold:              0.5,
		SummaryAfterDays:           7,
		ArchiveAfterDays:           30,
		MaxSummaryLen:              400,
		MinEntriesForConsolidation: 20,
		EvictionTriggerPct:         100,
		EvictionTargetPct:          75,
		LoadingRelevanceThreshold:  0.2,
		TierFullThreshold:          0.6,
	}
}
