package relevance

import (
	"testing"
	"time"
)

// P5 + P6
func TestScoreRecencyMonotoneAndHalfLife(t *testing.T) {
	now := time.Now()
	fresh := ScoreRecency(now, now, 7)
	if fresh < 0.99 {
		t.Fatalf("just-updated entry should score >= 0.99, got %v", fresh)
	}

	halfLife := ScoreRecency(now.Add(-7*24*time.Hour), now, 7)
	if halfLife < 0.49 || halfLife > 0.51 {
		t.Fatalf("age == half-life should score 0.5 +/- 0.01, got %v", halfLife)
	}

	older := ScoreRecency(now.Add(-14*24*time.Hour), now, 7)
	if older >= halfLife {
		t.Fatalf("recency must be monotonically non-increasing with age: older=%v halfLife=%v", older, halfLife)
	}

	if z := ScoreRecency(time.Time{}, now, 7); z != 0 {
		t.Fatalf("missing timestamp should score 0, got %v", z)
	}
}

func TestScoreFrequencyMonotoneNonDecreasing(t *testing.T) {
	low := ScoreFrequency(1, 100)
	high := ScoreFrequency(50, 100)
	if high < low {
		t.Fatalf("frequency must be non-decreasing with access count: low=%v high=%v", low, high)
	}
	if low < 0 || low > 1 || high < 0 || high > 1 {
		t.Fatalf("scores must lie in [0,1]: low=%v high=%v", low, high)
	}
	if z := ScoreFrequency(0, 100); z != 0 {
		t.Fatalf("zero access count should score 0, got %v", z)
	}
	if z := ScoreFrequency(5, 0); z != 0 {
		t.Fatalf("non-positive max should score 0, got %v", z)
	}
}

// P7
func TestScoreSimilarityCommutativeAndCaseInsensitive(t *testing.T) {
	a := Context{Tags: []string{"Auth", "JWT"}, Files: []string{"src/auth.js"}}
	b := Context{Tags: []string{"auth", "refactor"}, Files: []string{"SRC/AUTH.JS"}}

	ab := ScoreSimilarity(a, b)
	ba := ScoreSimilarity(b, a)
	if ab != ba {
		t.Fatalf("similarity must be commutative: sim(a,b)=%v sim(b,a)=%v", ab, ba)
	}
	if ab <= 0 {
		t.Fatalf("expected nonzero overlap, got %v", ab)
	}
}

func TestCompositeClampedToUnitInterval(t *testing.T) {
	w := Weights{Recency: 1, Frequency: 1, Similarity: 1, Links: 1}
	b := Breakdown{Recency: 1, Frequency: 1, Similarity: 1, Links: 1}
	if c := Composite(w, b); c != 1 {
		t.Fatalf("expected clamp to 1, got %v", c)
	}
}

// P10
func TestEvictKeepsTopByRelevanceAtBudget(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.EvictionTriggerPct = 100
	cfg.EvictionTargetPct = 75

	var entries []Entry
	for i := 0; i < 60; i++ {
		entries = append(entries, Entry{
			ID:           string(rune('a' + i%26)),
			AccessCount:  i + 1, // strictly increasing -> strictly increasing frequency score
			LastAccessed: now,
			State:        StateFull,
		})
	}

	var archived []map[string]interface{}
	archiveFn := func(channel string, entry interface{}) error {
		archived = append(archived, entry.(map[string]interface{}))
		return nil
	}

	result, err := Evict(entries, "ch1", 50, Context{}, cfg, archiveFn, now)
	if err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if len(result.Kept) != 37 {
		t.Fatalf("got %d kept, want 37", len(result.Kept))
	}
	if len(result.Archived) != len(entries)-37 {
		t.Fatalf("got %d archived, want %d", len(result.Archived), len(entries)-37)
	}

	// Kept set must be exactly the top-37 by access count (our monotone
	// relevance proxy here), i.e. maximize total relevance among 37-subsets.
	minKeptAccess := entries[len(entries)-1].AccessCount
	for _, e := range result.Kept {
		if e.AccessCount < minKeptAccess {
			minKeptAccess = e.AccessCount
		}
	}
	for _, e := range result.Archived {
		if e.AccessCount > minKeptAccess {
			t.Fatalf("archived entry with access=%d should have been kept over kept-minimum=%d", e.AccessCount, minKeptAccess)
		}
	}
}

func TestEvictNoopBelowTrigger(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	entries := []Entry{{ID: "a", LastAccessed: now}}
	result, err := Evict(entries, "ch1", 50, Context{}, cfg, nil, now)
	if err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if len(result.Kept) != 1 || len(result.Archived) != 0 {
		t.Fatalf("expected no-op below trigger threshold, got %+v", result)
	}
}

// Scenario 5: memory consolidation.
func TestConsolidateScenario(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.SummaryAfterDays = 7
	cfg.ArchiveAfterDays = 30
	cfg.MinEntriesForConsolidation = 20

	var entries []Entry
	for i := 0; i < 5; i++ {
		entries = append(entries, Entry{
			ID: "hi", AccessCount: 100, LinkCount: 10,
			LastAccessed: now.Add(-2 * 24 * time.Hour),
			State:        StateFull,
			Payload:      map[string]interface{}{"reason": "important"},
		})
	}
	for i := 0; i < 15; i++ {
		entries = append(entries, Entry{
			ID: "mid", AccessCount: 1,
			LastAccessed: now.Add(-10 * 24 * time.Hour),
			State:        StateFull,
			Payload:      map[string]interface{}{"reason": "minor note"},
		})
	}
	for i := 0; i < 5; i++ {
		entries = append(entries, Entry{
			ID: "old", AccessCount: 1,
			LastAccessed: now.Add(-35 * 24 * time.Hour),
			State:        StateSummary,
		})
	}

	var archived int
	archiveFn := func(channel string, entry interface{}) error {
		archived++
		return nil
	}

	result, err := Consolidate(entries, "ch1", Context{}, cfg, archiveFn, now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if len(result.Summarized) < 15 {
		t.Fatalf("expected >=15 summarized, got %d", len(result.Summarized))
	}
	if len(result.Archived) < 5 {
		t.Fatalf("expected >=5 archived, got %d", len(result.Archived))
	}
	highRelevanceKept := 0
	for _, e := range result.Kept {
		if e.AccessCount == 100 {
			highRelevanceKept++
		}
	}
	if highRelevanceKept != 5 {
		t.Fatalf("expected all 5 high-relevance entries kept full, got %d", highRelevanceKept)
	}
}

func TestConsolidateNoopBelowMinimum(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	entries := []Entry{{ID: "a", LastAccessed: now}}
	result, err := Consolidate(entries, "ch1", Context{}, cfg, nil, now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if len(result.Kept) != 1 {
		t.Fatalf("expected no-op passthrough, got %+v", result)
	}
}

func TestSummariseTruncates(t *testing.T) {
	e := Entry{ID: "a", Payload: map[string]interface{}{"reason": "this is a very long explanation of why something happened in detail"}}
	out := Summarise(e, 10)
	if len(out.Payload["summary"].(string)) > 10 {
		t.Fatalf("expected truncated summary, got %q", out.Payload["summary"])
	}
	if out.State != StateSummary {
		t.Fatalf("expected state transition to summary, got %s", out.State)
	}
}

func TestGetRelevantMemoryTiers(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.LoadingRelevanceThreshold = 0.1
	cfg.TierFullThreshold = 0.6

	entries := []Entry{
		{ID: "fresh", AccessCount: 50, LastAccessed: now},
		{ID: "stale", AccessCount: 1, LastAccessed: now.Add(-60 * 24 * time.Hour)},
	}
	loaded := GetRelevantMemory(entries, Context{}, cfg, now, 10)
	if len(loaded) == 0 {
		t.Fatal("expected at least one loaded entry")
	}
	if loaded[0].Entry.ID != "fresh" {
		t.Fatalf("expected fresh entry to rank first, got %s", loaded[0].Entry.ID)
	}
}
