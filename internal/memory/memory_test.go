package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// P3: version strictly increases across successive publishes; every stored
// envelope validates against its schema.
func TestPublishVersionMonotone(t *testing.T) {
	s := New(t.TempDir(), nil)
	for i := 1; i <= 3; i++ {
		env, err := s.Publish("ch1", "frontend", map[string]interface{}{"n": i}, "")
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if env.Version != i {
			t.Fatalf("got version %d, want %d", env.Version, i)
		}
	}
}

func TestPublishRejectsSchemaInvalid(t *testing.T) {
	s := New(t.TempDir(), nil)
	schema := &Schema{
		Type:     "object",
		Required: []string{"title"},
		Properties: map[string]*Schema{
			"title": {Type: "string"},
		},
	}
	if err := s.DeclareSchema("tasks", schema); err != nil {
		t.Fatalf("DeclareSchema: %v", err)
	}

	_, err := s.Publish("tasks", "pm", map[string]interface{}{"description": "no title"}, "")
	if !pilotlerr.Is(err, pilotlerr.SchemaInvalid) {
		t.Fatalf("expected SchemaInvalid, got %v", err)
	}

	env, err := s.Read("tasks")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env != nil {
		t.Fatal("a failed publish must leave the channel untouched")
	}

	env2, err := s.Publish("tasks", "pm", map[string]interface{}{"title": "fix bug"}, "")
	if err != nil {
		t.Fatalf("valid publish should succeed: %v", err)
	}
	if env2.Version != 1 {
		t.Fatalf("first successful publish should be version 1, got %d", env2.Version)
	}
}

func TestPublishRejectsMismatchedPublisher(t *testing.T) {
	s := New(t.TempDir(), nil)
	if _, err := s.Publish("ch1", "frontend", map[string]interface{}{"a": 1}, ""); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	_, err := s.Publish("ch1", "backend", map[string]interface{}{"a": 2}, "")
	if !pilotlerr.Is(err, pilotlerr.SchemaInvalid) {
		t.Fatalf("expected SchemaInvalid for publisher mismatch, got %v", err)
	}
}

func TestReadSummaryOmitsData(t *testing.T) {
	s := New(t.TempDir(), nil)
	if _, err := s.Publish("ch1", "pm", map[string]interface{}{"secret": "payload"}, "brief"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sum, err := s.ReadSummary("ch1")
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if sum.Summary != "brief" || sum.Version != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestDataAsSequenceNormalizesObjects(t *testing.T) {
	s := New(t.TempDir(), nil)
	env, _ := s.Publish("ch1", "pm", map[string]interface{}{"a": 1}, "")
	seq := DataAsSequence(env.Data)
	if len(seq) != 1 {
		t.Fatalf("expected object payload normalized to 1-element sequence, got %d", len(seq))
	}

	env2, _ := s.Publish("ch2", "pm", []interface{}{1, 2, 3}, "")
	seq2 := DataAsSequence(env2.Data)
	if len(seq2) != 3 {
		t.Fatalf("expected array payload to pass through with 3 elements, got %d", len(seq2))
	}
}

func TestAgentLogRecordAndQuery(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.RecordDecision("frontend", "chose tailwind"); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if err := s.RecordDiscovery("frontend", "found dead code", "refactor", []string{"cleanup"}, []string{"a.go"}); err != nil {
		t.Fatalf("RecordDiscovery: %v", err)
	}

	q, err := s.Query("frontend", "decisions", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(q.Records) != 1 || q.Records[0].Text != "chose tailwind" {
		t.Fatalf("unexpected query result: %+v", q)
	}

	q2, err := s.Query("frontend", "discoveries", 0)
	if err != nil {
		t.Fatalf("Query discoveries: %v", err)
	}
	if len(q2.Records) != 1 || q2.Records[0].Category != "refactor" {
		t.Fatalf("unexpected discovery record: %+v", q2.Records)
	}
}

func TestPreferencesNeverPruned(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.SetPreference("frontend", "style", "tailwind"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	// Prune operates only on JSONL logs; preferences.json has no Prune path
	// at all, confirming it is structurally exempt.
	p, err := s.GetPreferences("frontend")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p.Values["style"] != "tailwind" {
		t.Fatalf("unexpected preferences: %+v", p)
	}
}

func TestPruneDropsOldRecords(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.RecordError("frontend", "old error"); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	path := filepath.Join(s.memDir, "agents", "frontend", "errors.jsonl")
	_ = path

	if err := s.Prune("frontend", "errors", -time.Hour); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	q, err := s.Query("frontend", "errors", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(q.Records) != 0 {
		t.Fatalf("expected prune to drop all records older than a negative TTL cutoff, got %d", len(q.Records))
	}
}
